package di

import (
	"fmt"
	"reflect"
	"strings"
)

// MustResolve resolves a component with type safety, panics on error.
// Use this in handlers when you need a dependency.
//
// Example:
//
//	log := di.MustResolve[*logger.Logger](host.Services, di.Pkg.Logger)
func MustResolve[T any](c Container, key string) T {
	instance, err := c.Resolve(key)
	if err != nil {
		panic(fmt.Sprintf("di: failed to resolve %s: %v", key, err))
	}
	result, ok := instance.(T)
	if !ok {
		var zero T
		panic(fmt.Sprintf("di: component %s is %T, expected %T", key, instance, zero))
	}
	return result
}

// Resolve resolves a component with type safety, returns error on failure.
// Use this when you want to handle resolution errors gracefully.
//
// Example:
//
//	cfg, err := di.Resolve[*config.Configuration](c, di.Pkg.Config)
//	if err != nil {
//	    return fmt.Errorf("failed to get configuration: %w", err)
//	}
func Resolve[T any](c Container, key string) (T, error) {
	var zero T
	instance, err := c.Resolve(key)
	if err != nil {
		return zero, fmt.Errorf("di: failed to resolve %s: %w", key, err)
	}
	result, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("di: component %s is %T, expected %T", key, instance, zero)
	}
	return result, nil
}

// TryResolve resolves a component, returns zero value and false if not found.
// Use this when a dependency is optional.
//
// Example:
//
//	if metrics, ok := di.TryResolve[*Metrics](c, "metrics"); ok {
//	    metrics.Record(...)
//	}
func TryResolve[T any](c Container, key string) (T, bool) {
	var zero T
	instance, err := c.Resolve(key)
	if err != nil {
		return zero, false
	}
	result, ok := instance.(T)
	if !ok {
		return zero, false
	}
	return result, true
}

// TypeKey returns the registration key used for T by the type-keyed
// helpers: the package path-qualified type name, with one "*" per pointer.
func TypeKey[T any]() string {
	t := reflect.TypeFor[T]()
	stars := 0
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
		stars++
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return reflect.TypeFor[T]().String()
	}
	return strings.Repeat("*", stars) + t.PkgPath() + "." + t.Name()
}

// RegisterSingletonType registers T under TypeKey[T] with a constructor
// called at most once for the container lifetime.
func RegisterSingletonType[T any](c Container, constructor func(Container) (T, error)) error {
	return c.RegisterLazy(TypeKey[T](), constructor)
}

// RegisterScopedType registers T under TypeKey[T] with a constructor called
// once per scope.
func RegisterScopedType[T any](c Container, constructor func(Container) (T, error)) error {
	return c.RegisterScoped(TypeKey[T](), constructor)
}

// RegisterInstance registers a pre-built value under TypeKey[T].
func RegisterInstance[T any](c Container, instance T) error {
	return c.RegisterSingleton(TypeKey[T](), instance)
}

// ResolveType resolves the registration for TypeKey[T].
func ResolveType[T any](c Container) (T, error) {
	return Resolve[T](c, TypeKey[T]())
}
