package di

import (
	stderrors "errors"
	"fmt"
	"io"
	"sync"
)

// scope caches scoped instances and delegates everything else to its root.
type scope struct {
	root      *UnifiedContainer
	mu        sync.Mutex
	instances map[string]interface{}
	order     []string
	closed    bool
}

func newScope(root *UnifiedContainer) *scope {
	return &scope{root: root, instances: make(map[string]interface{})}
}

func (s *scope) Register(key string, constructor interface{}) error {
	return s.root.Register(key, constructor)
}

func (s *scope) RegisterLazy(key string, constructor interface{}, options ...LazyOption) error {
	return s.root.RegisterLazy(key, constructor, options...)
}

func (s *scope) RegisterEager(key string, constructor interface{}) error {
	return s.root.RegisterEager(key, constructor)
}

func (s *scope) RegisterSingleton(key string, instance interface{}) error {
	return s.root.RegisterSingleton(key, instance)
}

func (s *scope) RegisterScoped(key string, constructor interface{}) error {
	return s.root.RegisterScoped(key, constructor)
}

func (s *scope) IsRegistered(key string) bool { return s.root.IsRegistered(key) }

func (s *scope) CreateScope() Scope { return newScope(s.root) }

func (s *scope) ApplyOptions(opts ProviderOptions) error {
	return fmt.Errorf("provider options can only be applied to the root container")
}

func (s *scope) Options() ProviderOptions { return s.root.Options() }

func (s *scope) Registrations() []RegistrationInfo { return s.root.Registrations() }

// Resolve returns the scope's own instance for scoped registrations and the
// root's instance for everything else.
func (s *scope) Resolve(key string) (interface{}, error) {
	s.root.mutex.RLock()
	registration, exists := s.root.components[key]
	s.root.mutex.RUnlock()

	if exists && registration.mode == Scoped {
		return s.resolveScoped(registration)
	}
	return s.root.Resolve(key)
}

func (s *scope) resolveScoped(registration *ComponentRegistration) (interface{}, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("scope is closed: cannot resolve '%s'", registration.key)
	}
	if instance, ok := s.instances[registration.key]; ok {
		s.mu.Unlock()
		return instance, nil
	}
	s.mu.Unlock()

	// Constructed unlocked so scoped constructors can resolve other scoped services.
	instance, err := callConstructor(registration.constructor, s)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scoped component '%s': %w", registration.key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		closeInstance(instance)
		return nil, fmt.Errorf("scope is closed: cannot resolve '%s'", registration.key)
	}
	if existing, ok := s.instances[registration.key]; ok {
		closeInstance(instance)
		return existing, nil
	}
	s.instances[registration.key] = instance
	s.order = append(s.order, registration.key)
	return instance, nil
}

func closeInstance(instance interface{}) {
	if closer, ok := instance.(io.Closer); ok {
		_ = closer.Close()
	}
}

// Close releases scoped instances in reverse creation order.
func (s *scope) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	order := s.order
	instances := s.instances
	s.instances = nil
	s.order = nil
	s.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		if closer, ok := instances[order[i]].(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return stderrors.Join(errs...)
}
