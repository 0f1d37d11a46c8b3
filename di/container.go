package di

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/kbukum/consolehost/errors"
	"github.com/kbukum/consolehost/logger"
)

// RegistrationMode determines how a component should be resolved
type RegistrationMode int

const (
	Eager     RegistrationMode = iota // Initialize immediately on registration
	Lazy                              // Initialize on first resolve, then cached for the container lifetime
	Singleton                         // Pre-created instance
	Scoped                            // One instance per scope
)

func (m RegistrationMode) String() string {
	switch m {
	case Eager:
		return "eager"
	case Lazy:
		return "lazy"
	case Singleton:
		return "singleton"
	case Scoped:
		return "scoped"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Container defines the interface for a dependency injection container
type Container interface {
	Register(key string, constructor interface{}) error
	RegisterLazy(key string, constructor interface{}, options ...LazyOption) error
	RegisterEager(key string, constructor interface{}) error
	RegisterSingleton(key string, instance interface{}) error
	RegisterScoped(key string, constructor interface{}) error
	Resolve(key string) (interface{}, error)
	IsRegistered(key string) bool

	// CreateScope returns a child container owning its own scoped instances.
	CreateScope() Scope

	// ApplyOptions finalizes the container with provider options.
	ApplyOptions(opts ProviderOptions) error
	Options() ProviderOptions

	Close() error

	// Introspection
	Registrations() []RegistrationInfo
}

// Scope is a child container. Closing it releases the scoped instances it
// created; singletons stay owned by the root.
type Scope interface {
	Container
}

// ProviderOptions controls container validation.
type ProviderOptions struct {
	// ValidateScopes rejects resolving scoped services from the root container.
	ValidateScopes bool
	// ValidateOnBuild constructs every lazy registration when options are applied.
	ValidateOnBuild bool
}

// RegistrationInfo describes a registered component for introspection.
type RegistrationInfo struct {
	Key         string
	Mode        RegistrationMode
	Initialized bool
}

// UnifiedContainer is our single, unified DI container
type UnifiedContainer struct {
	components map[string]*ComponentRegistration
	singletons map[string]interface{}
	options    ProviderOptions
	rootScope  *scope
	mutex      sync.RWMutex
}

type ComponentRegistration struct {
	key         string
	constructor interface{}
	mode        RegistrationMode
	instance    interface{}
	mutex       sync.RWMutex
	initialized bool
	lastError   error
	retryPolicy *RetryPolicy
}

type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoffMs  int
	MaxBackoffMs      int
	BackoffMultiplier float64
}

type LazyOption func(*ComponentRegistration)

func NewContainer() Container {
	return &UnifiedContainer{
		components: make(map[string]*ComponentRegistration),
		singletons: make(map[string]interface{}),
	}
}

// Register component with lazy loading by default (most common case)
func (c *UnifiedContainer) Register(key string, constructor interface{}) error {
	return c.RegisterLazy(key, constructor)
}

// RegisterLazy registers a component for lazy initialization
func (c *UnifiedContainer) RegisterLazy(key string, constructor interface{}, options ...LazyOption) error {
	if err := checkConstructor(key, constructor); err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	registration := &ComponentRegistration{
		key:         key,
		constructor: constructor,
		mode:        Lazy,
		retryPolicy: defaultRetryPolicy(),
	}

	// Apply options
	for _, opt := range options {
		opt(registration)
	}

	delete(c.singletons, key)
	c.components[key] = registration
	return nil
}

// RegisterEager registers a component for immediate initialization
func (c *UnifiedContainer) RegisterEager(key string, constructor interface{}) error {
	if err := checkConstructor(key, constructor); err != nil {
		return err
	}

	// Initialize immediately
	instance, err := callConstructor(constructor, c)
	if err != nil {
		return fmt.Errorf("failed to initialize eager component '%s': %w", key, err)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.singletons, key)
	c.components[key] = &ComponentRegistration{
		key:         key,
		constructor: constructor,
		mode:        Eager,
		instance:    instance,
		initialized: true,
	}
	return nil
}

// RegisterScoped registers a component created once per scope.
func (c *UnifiedContainer) RegisterScoped(key string, constructor interface{}) error {
	if err := checkConstructor(key, constructor); err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.singletons, key)
	c.components[key] = &ComponentRegistration{
		key:         key,
		constructor: constructor,
		mode:        Scoped,
	}
	return nil
}

// RegisterSingleton registers a pre-created instance
func (c *UnifiedContainer) RegisterSingleton(key string, instance interface{}) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.components, key)
	c.singletons[key] = instance
	return nil
}

// IsRegistered reports whether key has any registration.
func (c *UnifiedContainer) IsRegistered(key string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	_, single := c.singletons[key]
	_, comp := c.components[key]
	return single || comp
}

// Resolve gets a component instance
func (c *UnifiedContainer) Resolve(key string) (interface{}, error) {
	// Check singletons first
	c.mutex.RLock()
	if singleton, exists := c.singletons[key]; exists {
		c.mutex.RUnlock()
		return singleton, nil
	}

	registration, exists := c.components[key]
	validateScopes := c.options.ValidateScopes
	c.mutex.RUnlock()

	if !exists {
		return nil, errors.NotRegistered(key)
	}

	if registration.mode == Scoped {
		if validateScopes {
			return nil, errors.ScopeViolation(key)
		}
		// Without scope validation the root behaves as its own scope.
		return c.root().resolveScoped(registration)
	}
	return c.resolveComponent(registration)
}

func (c *UnifiedContainer) root() *scope {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.rootScope == nil {
		c.rootScope = newScope(c)
	}
	return c.rootScope
}

func (c *UnifiedContainer) resolveComponent(registration *ComponentRegistration) (interface{}, error) {
	switch registration.mode {
	case Eager:
		return c.resolveEager(registration)
	case Lazy:
		return c.resolveLazy(registration)
	default:
		return nil, fmt.Errorf("unknown registration mode for component: %s", registration.key)
	}
}

func (c *UnifiedContainer) resolveEager(registration *ComponentRegistration) (interface{}, error) {
	registration.mutex.RLock()
	defer registration.mutex.RUnlock()
	if registration.initialized {
		return registration.instance, nil
	}
	return nil, fmt.Errorf("eager component not properly initialized: %s", registration.key)
}

func (c *UnifiedContainer) resolveLazy(registration *ComponentRegistration) (interface{}, error) {
	// Try to get cached instance
	registration.mutex.RLock()
	if registration.initialized && registration.lastError == nil {
		instance := registration.instance
		registration.mutex.RUnlock()
		return instance, nil
	}
	registration.mutex.RUnlock()

	// Initialize with retry logic
	return c.initializeWithRetry(registration)
}

func (c *UnifiedContainer) initializeWithRetry(registration *ComponentRegistration) (interface{}, error) {
	registration.mutex.Lock()
	defer registration.mutex.Unlock()

	// Double-check pattern
	if registration.initialized && registration.lastError == nil {
		return registration.instance, nil
	}

	policy := registration.retryPolicy
	var lastError error
	backoffMs := policy.InitialBackoffMs

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(backoffMs) * time.Millisecond)
			backoffMs = int(float64(backoffMs) * policy.BackoffMultiplier)
			if backoffMs > policy.MaxBackoffMs {
				backoffMs = policy.MaxBackoffMs
			}
		}

		instance, err := callConstructor(registration.constructor, c)
		if err != nil {
			lastError = err
			logger.Debug("Lazy component initialization failed", map[string]interface{}{
				"component": registration.key,
				"attempt":   attempt + 1,
				"error":     err.Error(),
			})
			continue
		}

		// Success
		registration.instance = instance
		registration.initialized = true
		registration.lastError = nil

		logger.Trace("Lazy component initialized", map[string]interface{}{
			"component": registration.key,
			"attempts":  attempt + 1,
		})

		return instance, nil
	}

	registration.lastError = lastError
	if policy.MaxAttempts == 1 {
		return nil, fmt.Errorf("failed to initialize component '%s': %w", registration.key, lastError)
	}
	return nil, fmt.Errorf("failed to initialize lazy component '%s' after %d attempts: %w",
		registration.key, policy.MaxAttempts, lastError)
}

// CreateScope returns a new scope rooted at this container.
func (c *UnifiedContainer) CreateScope() Scope {
	return newScope(c)
}

// ApplyOptions stores the provider options and, with ValidateOnBuild,
// constructs every lazy registration so construction errors surface now.
func (c *UnifiedContainer) ApplyOptions(opts ProviderOptions) error {
	c.mutex.Lock()
	c.options = opts
	lazy := make([]*ComponentRegistration, 0, len(c.components))
	for _, reg := range c.components {
		if reg.mode == Lazy {
			lazy = append(lazy, reg)
		}
	}
	c.mutex.Unlock()

	if !opts.ValidateOnBuild {
		return nil
	}

	sort.Slice(lazy, func(i, j int) bool { return lazy[i].key < lazy[j].key })
	var errs []error
	for _, reg := range lazy {
		if _, err := c.resolveLazy(reg); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Options returns the options applied with ApplyOptions.
func (c *UnifiedContainer) Options() ProviderOptions {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.options
}

// Registrations returns info about all registered components for introspection.
func (c *UnifiedContainer) Registrations() []RegistrationInfo {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	result := make([]RegistrationInfo, 0, len(c.components)+len(c.singletons))

	for key, reg := range c.components {
		reg.mutex.RLock()
		result = append(result, RegistrationInfo{
			Key:         key,
			Mode:        reg.mode,
			Initialized: reg.initialized,
		})
		reg.mutex.RUnlock()
	}

	for key := range c.singletons {
		result = append(result, RegistrationInfo{
			Key:         key,
			Mode:        Singleton,
			Initialized: true,
		})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// Close closes every initialized instance implementing io.Closer, root
// scoped instances included. Pre-registered singletons are owned by the
// caller that registered them and are left open.
func (c *UnifiedContainer) Close() error {
	c.mutex.Lock()
	rootScope := c.rootScope
	c.rootScope = nil
	var closers []io.Closer
	for _, registration := range c.components {
		registration.mutex.Lock()
		if registration.initialized {
			if closer, ok := registration.instance.(io.Closer); ok {
				closers = append(closers, closer)
			}
			registration.initialized = false
			registration.instance = nil
		}
		registration.mutex.Unlock()
	}
	c.mutex.Unlock()

	var errs []error
	if rootScope != nil {
		if err := rootScope.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, closer := range closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Helper functions and options
func WithRetryPolicy(policy *RetryPolicy) LazyOption {
	return func(reg *ComponentRegistration) {
		if policy != nil && policy.MaxAttempts > 0 {
			reg.retryPolicy = policy
		}
	}
}

func defaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:       1,
		InitialBackoffMs:  100,
		MaxBackoffMs:      5000,
		BackoffMultiplier: 2.0,
	}
}

func checkConstructor(key string, constructor interface{}) error {
	if constructor == nil || reflect.TypeOf(constructor).Kind() != reflect.Func {
		return fmt.Errorf("constructor for '%s' must be a function", key)
	}
	return nil
}

var (
	contextType   = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType     = reflect.TypeOf((*error)(nil)).Elem()
	containerType = reflect.TypeOf((*Container)(nil)).Elem()
)

// callConstructor invokes one of the supported constructor shapes:
// func() T, func(context.Context) T, func(Container) T, each optionally
// returning a trailing error. A panicking constructor yields an error.
func callConstructor(constructor interface{}, resolver Container) (instance interface{}, err error) {
	fn := reflect.ValueOf(constructor)
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("constructor must be a function")
	}

	defer func() {
		if r := recover(); r != nil {
			instance, err = nil, fmt.Errorf("constructor panicked: %v", r)
		}
	}()

	fnType := fn.Type()

	var results []reflect.Value
	switch fnType.NumIn() {
	case 0:
		results = fn.Call(nil)
	case 1:
		in := fnType.In(0)
		switch {
		case in == contextType:
			results = fn.Call([]reflect.Value{reflect.ValueOf(context.Background())})
		case in == containerType || reflect.TypeOf(resolver).AssignableTo(in):
			results = fn.Call([]reflect.Value{reflect.ValueOf(resolver)})
		default:
			return nil, fmt.Errorf("unsupported constructor parameter type %s", in)
		}
	default:
		return nil, fmt.Errorf("constructor must take at most one parameter, got %d", fnType.NumIn())
	}
	return handleConstructorResults(results)
}

func handleConstructorResults(results []reflect.Value) (interface{}, error) {
	switch len(results) {
	case 1:
		return results[0].Interface(), nil
	case 2:
		if !results[1].Type().Implements(errorType) {
			return nil, fmt.Errorf("constructor second result must be an error")
		}
		if err := results[1].Interface(); err != nil {
			return nil, err.(error)
		}
		return results[0].Interface(), nil
	default:
		return nil, fmt.Errorf("constructor must return either (instance) or (instance, error)")
	}
}
