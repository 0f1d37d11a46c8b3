package component

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kbukum/consolehost/logger"
)

// Background runs a function on its own goroutine from Start until Stop.
// The function receives a context that is cancelled by Stop.
type Background struct {
	name string
	run  func(ctx context.Context) error

	mu      sync.RWMutex
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
	running bool
}

// NewBackground creates a background component.
func NewBackground(name string, run func(ctx context.Context) error) *Background {
	return &Background{name: name, run: run}
}

// Name returns the component name.
func (b *Background) Name() string {
	return b.name
}

// Start launches the function. The start context only bounds the launch;
// the function keeps running until Stop.
func (b *Background) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return fmt.Errorf("component %s already started", b.name)
	}
	if b.run == nil {
		return fmt.Errorf("no run function for component: %s", b.name)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b.cancel = cancel
	b.done = make(chan struct{})
	b.err = nil
	b.running = true

	go b.loop(runCtx, b.done)
	return nil
}

func (b *Background) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("background component %s panicked: %v", b.name, r)
			}
		}()
		return b.run(ctx)
	}()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Background component exited", logger.ComponentFields(b.name, err))
	} else {
		err = nil
	}

	b.mu.Lock()
	b.err = err
	b.running = false
	b.mu.Unlock()
}

// Stop cancels the function and waits for it to return or for ctx to end.
func (b *Background) Stop(ctx context.Context) error {
	b.mu.RLock()
	cancel, done := b.cancel, b.done
	b.mu.RUnlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("component %s did not stop: %w", b.name, ctx.Err())
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.err
}

// Health reports healthy while the function runs or after a clean exit.
func (b *Background) Health(ctx context.Context) Health {
	b.mu.RLock()
	defer b.mu.RUnlock()

	switch {
	case b.err != nil:
		return Health{Name: b.name, Status: StatusUnhealthy, Message: b.err.Error()}
	case b.running:
		return Health{Name: b.name, Status: StatusHealthy}
	default:
		return Health{Name: b.name, Status: StatusDegraded, Message: "not running"}
	}
}
