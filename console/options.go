package console

import (
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/consolehost/config"
	"github.com/kbukum/consolehost/di"
	"github.com/kbukum/consolehost/hosting"
	"github.com/kbukum/consolehost/logger"
)

// Stage callbacks. A present callback replaces the default stage.
type (
	LoggingFunc          func(ctx *hosting.Context, b *logger.Builder)
	ConfigurationFunc    func(ctx *hosting.Context, b *config.Builder) error
	ServicesFunc         func(ctx *hosting.Context, c di.Container) error
	ContainerOptionsFunc func(ctx *hosting.Context, opts *di.ProviderOptions)
)

// Option configures one Run or CreateHost call.
type Option func(*overrides)

// overrides collects the options of one call. Nil stages use the default.
type overrides struct {
	args             []string
	argsSet          bool
	logging          LoggingFunc
	configuration    ConfigurationFunc
	services         ServicesFunc
	containerOptions ContainerOptionsFunc
	constructor      any
	tracerProvider   trace.TracerProvider

	runID string
}

func resolveOptions(opts []Option) *overrides {
	o := &overrides{}
	for _, opt := range opts {
		opt(o)
	}
	if !o.argsSet && len(os.Args) > 1 {
		o.args = os.Args[1:]
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	return o
}

// WithArgs sets the process arguments seen by the host configuration.
// Without it os.Args[1:] is used.
func WithArgs(args ...string) Option {
	return func(o *overrides) {
		o.args = append([]string(nil), args...)
		o.argsSet = true
	}
}

// WithLogging replaces the default logging stage (ConfigureDefaultLogging).
func WithLogging(fn LoggingFunc) Option {
	return func(o *overrides) {
		o.logging = fn
	}
}

// WithConfiguration replaces the default configuration sources.
func WithConfiguration(fn ConfigurationFunc) Option {
	return func(o *overrides) {
		o.configuration = fn
	}
}

// WithServices registers additional services. It runs after the application
// type is registered.
func WithServices(fn ServicesFunc) Option {
	return func(o *overrides) {
		o.services = fn
	}
}

// WithContainerOptions replaces the default container options, which
// disable scope validation.
func WithContainerOptions(fn ContainerOptionsFunc) Option {
	return func(o *overrides) {
		o.containerOptions = fn
	}
}

// WithConstructor sets how the application instance is created. Without it
// the application is the zero value of T, or a new T element for pointer
// types.
func WithConstructor[T any](fn func(c di.Container) (T, error)) Option {
	return func(o *overrides) {
		o.constructor = fn
	}
}

// WithTracerProvider sets the provider of the run span. Without it the
// global otel provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *overrides) {
		o.tracerProvider = tp
	}
}
