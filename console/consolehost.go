package console

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/consolehost/config"
	"github.com/kbukum/consolehost/di"
	"github.com/kbukum/consolehost/hosting"
	"github.com/kbukum/consolehost/logger"
)

const (
	tracerName = "github.com/kbukum/consolehost/console"
	spanName   = "console.Run"
)

// Run creates the host for T, resolves T, calls its Run method and blocks
// until the returned task settles. T must have a method Run() *Task; this
// is checked before anything else happens. Every failure is returned as a
// bootstrap error whose cause is the original error.
func Run[T any](opts ...Option) error {
	return invoke[T](resolveOptions(opts))
}

// RunApplication is Run for types known to implement Application.
func RunApplication[T Application](opts ...Option) error {
	return Run[T](opts...)
}

// CreateHost builds the host Run would use for T without starting it. The
// caller owns the host and must Close it. Errors are returned unchanged.
func CreateHost[T any](opts ...Option) (*hosting.Host, error) {
	return createHost[T](resolveOptions(opts))
}

// CreateApplicationHost is CreateHost for types known to implement Application.
func CreateApplicationHost[T Application](opts ...Option) (*hosting.Host, error) {
	return CreateHost[T](opts...)
}

func invoke[T any](o *overrides) (err error) {
	name := typeName[T]()
	if !hasRunMethod[T]() {
		return shapeError(name)
	}

	o.runID = uuid.NewString()
	ctx := logger.ContextWith(context.Background(), logger.FieldRunID, o.runID)
	ctx, span := o.tracerProvider.Tracer(tracerName).Start(ctx, spanName,
		trace.WithAttributes(
			attribute.String("application.name", name),
			attribute.String("run.id", o.runID),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	if sc := span.SpanContext(); sc.IsValid() {
		ctx = logger.ContextWith(ctx, logger.FieldTraceID, sc.TraceID().String())
		ctx = logger.ContextWith(ctx, logger.FieldSpanID, sc.SpanID().String())
	}

	if cause := execute[T](ctx, o, name); cause != nil {
		return bootstrapError(name, cause)
	}
	return nil
}

// execute owns the host for one run and closes it on every path.
func execute[T any](ctx context.Context, o *overrides, name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("application %s panicked: %v", name, r)
		}
	}()

	host, err := createHost[T](o)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := host.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	log := host.Logger.WithContext(ctx)
	start := time.Now()
	log.Debug("Starting application")

	if err := host.Start(ctx); err != nil {
		return err
	}

	instance, err := di.ResolveType[T](host.Services)
	if err != nil {
		return err
	}
	app, ok := any(instance).(Application)
	if !ok {
		return fmt.Errorf("resolved application %s is %T, which has no Run method", name, instance)
	}

	if err := app.Run().Wait(); err != nil {
		log.Debug("Application failed", logger.ErrorFields("run", err))
		return err
	}

	log.Debug("Application completed", logger.DurationFields("run", time.Since(start)))
	return nil
}

func createHost[T any](o *overrides) (*hosting.Host, error) {
	constructor, err := constructorFor[T](o.constructor)
	if err != nil {
		return nil, err
	}
	name := typeName[T]()

	b := hosting.CreateDefaultBuilder(o.args).UseApplicationName(name)

	if o.logging != nil {
		b.ConfigureLogging(o.logging)
	} else {
		b.ConfigureLogging(func(_ *hosting.Context, lb *logger.Builder) {
			ConfigureDefaultLogging(lb)
		})
	}
	runID := o.runID
	b.ConfigureLogging(func(_ *hosting.Context, lb *logger.Builder) {
		lb.Enrich(logger.FieldApplication, name)
		if runID != "" {
			lb.Enrich(logger.FieldRunID, runID)
		}
	})

	if o.configuration != nil {
		b.ConfigureAppConfiguration(o.configuration)
	} else {
		b.ConfigureAppConfiguration(defaultConfiguration)
	}

	b.ConfigureServices(func(_ *hosting.Context, c di.Container) error {
		return di.RegisterSingletonType(c, constructor)
	})
	if o.services != nil {
		b.ConfigureServices(o.services)
	}

	// Container options start from zero values, replacing the builder defaults.
	containerOptions := o.containerOptions
	b.UseServiceProvider(func(ctx *hosting.Context, opts *di.ProviderOptions) {
		*opts = di.ProviderOptions{}
		if containerOptions != nil {
			containerOptions(ctx, opts)
			return
		}
		opts.ValidateScopes = false
	})

	return b.Build()
}

// defaultConfiguration layers appsettings.json, appsettings.<env>.json and
// environment variables from the working directory, later sources winning.
func defaultConfiguration(ctx *hosting.Context, cb *config.Builder) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	cb.ClearSources().
		SetBasePath(wd).
		AddJSONFile("appsettings.json", true, true).
		AddJSONFile(fmt.Sprintf("appsettings.%s.json", ctx.Environment.Name), true, true).
		AddEnvironmentVariables("")
	return nil
}

func constructorFor[T any](fn any) (func(di.Container) (T, error), error) {
	if fn == nil {
		return defaultConstructor[T], nil
	}
	typed, ok := fn.(func(di.Container) (T, error))
	if !ok {
		return nil, fmt.Errorf("constructor %T does not construct %s", fn, reflect.TypeFor[T]())
	}
	return typed, nil
}

// defaultConstructor returns a new element for pointer types and the zero
// value otherwise.
func defaultConstructor[T any](di.Container) (T, error) {
	var zero T
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.Pointer {
		return reflect.New(t.Elem()).Interface().(T), nil
	}
	return zero, nil
}
