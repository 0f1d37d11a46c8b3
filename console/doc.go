// Package console runs console applications on a standard host.
//
// An application is any type with a Run method returning a *Task:
//
//	type Greeter struct{ log *logger.Logger }
//
//	func (g *Greeter) Run() *console.Task {
//	    return console.Go(func() error {
//	        g.log.Info("hello")
//	        return nil
//	    })
//	}
//
//	func main() {
//	    if err := console.RunApplication[*Greeter](); err != nil {
//	        os.Exit(1)
//	    }
//	}
//
// Run builds the host with default configuration (appsettings.json,
// appsettings.<env>.json, environment variables), default logging (trace
// level console output installed as the global logger) and the application
// registered as a singleton. It resolves the application, calls Run, waits
// for the task and closes the host. Every failure is returned as a single
// bootstrap error naming the application type; see IsBootstrapError.
//
// Each stage can be replaced with an option: WithLogging,
// WithConfiguration, WithServices (added after the application
// registration) and WithContainerOptions.
package console
