// Package di provides the service container used by consolehost hosts.
//
// Services are registered under string keys as pre-built instances, lazy
// singletons (constructed on first resolve, then cached), eager singletons
// or scoped services (one instance per scope). Type-keyed helpers derive the
// key from a Go type so callers can register and resolve by type.
//
// # Registration
//
//	di.RegisterSingletonType(c, func(c di.Container) (*Greeter, error) {
//	    return &Greeter{}, nil
//	})
//
// # Resolution
//
//	g, err := di.ResolveType[*Greeter](c)
//
// Provider options control validation: with ValidateScopes a scoped service
// cannot be resolved from the root container, only from a scope.
package di
