// Package hosting assembles the runtime object graph of an application:
// configuration, logging, the service container and lifecycle components.
//
// A Builder records configuration callbacks and runs them once, in phase
// order, when Build is called:
//
//  1. host configuration (environment name, content root, application name)
//  2. app configuration sources
//  3. logging sinks
//  4. service registrations
//  5. service provider options
//
// # Quick Start
//
//	host, err := hosting.CreateDefaultBuilder(os.Args[1:]).
//	    ConfigureServices(func(ctx *hosting.Context, c di.Container) error {
//	        return di.RegisterSingletonType(c, newWorker)
//	    }).
//	    Build()
//	if err != nil {
//	    return err
//	}
//	defer host.Close()
//
// The host owns everything it built. Close stops started components, closes
// the container, releases disposable log sinks and stops config watchers.
package hosting
