package config

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"

	"github.com/kbukum/consolehost/logger"
)

// Configuration is the merged key/value view over a set of sources.
// It is safe for concurrent use.
type Configuration struct {
	mu       sync.RWMutex
	v        *viper.Viper
	sources  []Source
	watcher  *watcher
	onChange []func(*Configuration)

	// notifyMu serializes change callbacks.
	notifyMu sync.Mutex
}

// Reload re-reads every source. On failure the previous values are kept.
func (c *Configuration) Reload() error {
	v := viper.New()
	for i, s := range c.sources {
		values, err := s.Load()
		if err != nil {
			return fmt.Errorf("config source %d: %w", i, err)
		}
		for k, val := range values {
			v.Set(k, val)
		}
	}

	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
	return nil
}

// OnChange registers fn to run after a watched file changed and the
// configuration was reloaded. Callbacks run one at a time on a goroutine of
// their own, so fn may call Close.
func (c *Configuration) OnChange(fn func(*Configuration)) {
	c.mu.Lock()
	c.onChange = append(c.onChange, fn)
	c.mu.Unlock()
}

func (c *Configuration) onFileChanged(path string) {
	if err := c.Reload(); err != nil {
		logger.Warn("Configuration reload failed", map[string]interface{}{
			"file":  path,
			"error": err.Error(),
		})
		return
	}

	c.mu.RLock()
	callbacks := make([]func(*Configuration), len(c.onChange))
	copy(callbacks, c.onChange)
	c.mu.RUnlock()

	if len(callbacks) == 0 {
		return
	}
	go func() {
		c.notifyMu.Lock()
		defer c.notifyMu.Unlock()
		for _, fn := range callbacks {
			fn(c)
		}
	}()
}

func (c *Configuration) viper() *viper.Viper {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v
}

// Get returns the value for key, or nil.
func (c *Configuration) Get(key string) any { return c.viper().Get(key) }

// GetString returns the value for key as a string.
func (c *Configuration) GetString(key string) string { return c.viper().GetString(key) }

// GetInt returns the value for key as an int.
func (c *Configuration) GetInt(key string) int { return c.viper().GetInt(key) }

// GetBool returns the value for key as a bool.
func (c *Configuration) GetBool(key string) bool { return c.viper().GetBool(key) }

// IsSet reports whether any source defines key.
func (c *Configuration) IsSet(key string) bool { return c.viper().IsSet(key) }

// AllSettings returns the merged values as nested maps.
func (c *Configuration) AllSettings() map[string]any { return c.viper().AllSettings() }

// Unmarshal decodes the whole configuration into out using mapstructure tags.
func (c *Configuration) Unmarshal(out any) error {
	if err := c.viper().Unmarshal(out); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return nil
}

// UnmarshalKey decodes the section under key into out.
func (c *Configuration) UnmarshalKey(key string, out any) error {
	if err := c.viper().UnmarshalKey(key, out); err != nil {
		return fmt.Errorf("failed to unmarshal configuration section %s: %w", key, err)
	}
	return nil
}

// Close stops file watching. It is safe to call more than once.
func (c *Configuration) Close() error {
	c.mu.Lock()
	w := c.watcher
	c.watcher = nil
	c.mu.Unlock()

	if w == nil {
		return nil
	}
	return w.Close()
}
