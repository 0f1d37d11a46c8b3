package hosting

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/consolehost/component"
	"github.com/kbukum/consolehost/config"
	"github.com/kbukum/consolehost/di"
	"github.com/kbukum/consolehost/logger"
)

// Host is the assembled application runtime. It owns every field.
type Host struct {
	Services      di.Container
	Configuration *config.Configuration
	Logger        *logger.Logger
	Environment   Environment
	Components    *component.Registry

	hostConfig      *config.Configuration
	onStarted       []Hook
	onStopping      []Hook
	shutdownTimeout time.Duration

	mu      sync.Mutex
	started bool
	closed  bool
}

// Start starts the registered components, then runs the OnStarted hooks.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("host is closed")
	}
	if h.started {
		return nil
	}

	start := time.Now()
	if err := h.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start components: %w", err)
	}
	h.started = true

	if err := runHooks(ctx, h.onStarted); err != nil {
		return fmt.Errorf("onStarted hook failed: %w", err)
	}

	h.Logger.Debug("Host started", map[string]interface{}{
		logger.FieldEnvironment: h.Environment.Name,
		"components":            h.Components.Len(),
		logger.FieldDuration:    time.Since(start).Milliseconds(),
	})
	return nil
}

// Stop runs the OnStopping hooks, then stops the components in reverse order.
func (h *Host) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stop(ctx)
}

func (h *Host) stop(ctx context.Context) error {
	if !h.started {
		return nil
	}
	h.started = false

	var errs []error
	if err := runHooks(ctx, h.onStopping); err != nil {
		h.Logger.Error("OnStopping hook error", logger.ErrorFields("stop_host", err))
		errs = append(errs, err)
	}
	if err := h.Components.StopAll(ctx); err != nil {
		h.Logger.Error("Component shutdown completed with errors", logger.ErrorFields("stop_host", err))
		errs = append(errs, err)
	}
	return stderrors.Join(errs...)
}

// Close stops the host if it is running and releases everything it owns:
// the container, the disposable log sinks and the configuration watchers.
// Close is idempotent.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()

	var errs []error
	if err := h.stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := h.Services.Close(); err != nil {
		h.Logger.Error("Container close error", logger.ErrorFields("close_host", err))
		errs = append(errs, err)
	}
	h.Logger.Debug("Host closed")
	if err := h.Logger.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := h.Configuration.Close(); err != nil {
		errs = append(errs, err)
	}
	if h.hostConfig != nil {
		if err := h.hostConfig.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// ReadyCheck verifies that all registered components are healthy.
func (h *Host) ReadyCheck(ctx context.Context) error {
	results := h.Components.HealthAll(ctx)
	var unhealthy []string
	for _, hr := range results {
		if hr.Status != component.StatusHealthy {
			detail := hr.Name + "=" + string(hr.Status)
			if hr.Message != "" {
				detail += "(" + hr.Message + ")"
			}
			unhealthy = append(unhealthy, detail)
		}
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("unhealthy components: %v", unhealthy)
	}
	return nil
}
