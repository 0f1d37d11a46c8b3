package console

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/consolehost/config"
	"github.com/kbukum/consolehost/di"
	"github.com/kbukum/consolehost/errors"
	"github.com/kbukum/consolehost/hosting"
	"github.com/kbukum/consolehost/logger"
)

// sharedLog records what test applications did.
type sharedLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *sharedLog) add(s string) {
	l.mu.Lock()
	l.entries = append(l.entries, s)
	l.mu.Unlock()
}

func (l *sharedLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

var greeterLog sharedLog

type Greeter struct{}

func (g *Greeter) Run() *Task {
	greeterLog.add("done")
	return Completed()
}

type Failing struct{ err error }

func (f *Failing) Run() *Task { return Failed(f.err) }

type Panicking struct{}

func (Panicking) Run() *Task { panic("cannot run") }

type WrongReturn struct{}

func (WrongReturn) Run() error { return nil }

type NoRun struct{}

type PointerReceiver struct{}

func (*PointerReceiver) Run() *Task { return Completed() }

// Inspector runs a caller supplied check against the container it was built from.
type Inspector struct {
	c     di.Container
	check func(p *Inspector) error
}

func (p *Inspector) Run() *Task {
	return Go(func() error { return p.check(p) })
}

func inspect(check func(p *Inspector) error) Option {
	return WithConstructor(func(c di.Container) (*Inspector, error) {
		return &Inspector{c: c, check: check}, nil
	})
}

func quietLogging() Option {
	return WithLogging(func(_ *hosting.Context, lb *logger.Builder) { lb.ClearSinks() })
}

// isolate runs the test in an empty working directory and restores the
// global logger afterward.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(hosting.EnvironmentVariable, "")
	t.Cleanup(func() { _ = logger.Shutdown() })
	return dir
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func markerLogger(t *testing.T) *logger.Logger {
	t.Helper()
	marker := logger.FromZerolog(zerolog.Nop(), "marker", nil)
	logger.SetGlobalLogger(marker)
	return marker
}

func TestGreeterScenario(t *testing.T) {
	isolate(t)
	greeterLog = sharedLog{}

	if err := Run[*Greeter](WithArgs()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := greeterLog.all(); len(got) != 1 || got[0] != "done" {
		t.Errorf("expected shared log [done], got %v", got)
	}
}

func TestRunApplication(t *testing.T) {
	isolate(t)
	greeterLog = sharedLog{}

	if err := RunApplication[*Greeter](WithArgs(), quietLogging()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(greeterLog.all()) != 1 {
		t.Errorf("expected one run, got %v", greeterLog.all())
	}
}

func TestApplicationIsSingleton(t *testing.T) {
	isolate(t)

	err := Run[*Inspector](WithArgs(), quietLogging(), inspect(func(p *Inspector) error {
		first, err := di.ResolveType[*Inspector](p.c)
		if err != nil {
			return err
		}
		second, err := di.ResolveType[*Inspector](p.c)
		if err != nil {
			return err
		}
		if first != p || second != p {
			return stderrors.New("application resolved to a different instance")
		}
		return nil
	}))
	if err != nil {
		t.Fatalf("expected singleton application, got %v", err)
	}
}

func TestRunFailureCause(t *testing.T) {
	isolate(t)
	sentinel := stderrors.New("application failed")

	err := Run[*Failing](WithArgs(), quietLogging(), WithConstructor(func(di.Container) (*Failing, error) {
		return &Failing{err: sentinel}, nil
	}))

	if !IsBootstrapError(err) {
		t.Fatalf("expected bootstrap error, got %v", err)
	}
	appErr, _ := errors.AsAppError(err)
	if appErr.Cause != sentinel {
		t.Errorf("expected cause to be the application error, got %v", appErr.Cause)
	}
	if !stderrors.Is(err, sentinel) {
		t.Error("expected errors.Is to reach the application error")
	}
	want := "Could not construct console host for application 'Failing', see innerException for details."
	if appErr.Message != want {
		t.Errorf("message = %q, want %q", appErr.Message, want)
	}
	if appErr.Details["application"] != "Failing" {
		t.Errorf("expected application detail, got %v", appErr.Details)
	}
}

func TestRunPanicIsWrapped(t *testing.T) {
	isolate(t)

	err := Run[Panicking](WithArgs(), quietLogging())
	if !IsBootstrapError(err) {
		t.Fatalf("expected bootstrap error, got %v", err)
	}
	appErr, _ := errors.AsAppError(err)
	if appErr.Cause == nil || !strings.Contains(appErr.Cause.Error(), "cannot run") {
		t.Errorf("expected panic as cause, got %v", appErr.Cause)
	}
}

func TestTaskPanicIsWrapped(t *testing.T) {
	isolate(t)

	err := Run[*Inspector](WithArgs(), quietLogging(), inspect(func(*Inspector) error { panic("inside task") }))
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Cause == nil || !strings.Contains(appErr.Cause.Error(), "inside task") {
		t.Errorf("expected task panic as cause, got %v", err)
	}
}

func TestShapeFailure(t *testing.T) {
	tests := []struct {
		name string
		run  func(opts ...Option) error
		want string
	}{
		{"wrong return type", Run[WrongReturn], "WrongReturn"},
		{"no run method", Run[NoRun], "NoRun"},
		{"pointer receiver on value type", Run[PointerReceiver], "PointerReceiver"},
		{"pointer to wrong return type", Run[*WrongReturn], "WrongReturn"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			isolate(t)
			marker := markerLogger(t)

			err := tc.run(WithArgs())
			if !IsBootstrapError(err) {
				t.Fatalf("expected bootstrap error, got %v", err)
			}
			appErr, _ := errors.AsAppError(err)
			want := "Could not construct console host for application '" + tc.want +
				"' because the 'Run' method's return type is not of type 'Task'."
			if appErr.Message != want {
				t.Errorf("message = %q, want %q", appErr.Message, want)
			}
			if appErr.Cause != nil {
				t.Errorf("expected no cause, got %v", appErr.Cause)
			}
			if logger.GetGlobalLogger() != marker {
				t.Error("expected no logging side effects before the shape check")
			}
		})
	}
}

func TestShapeFailureBeforeHostWork(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, "appsettings.json", `{"broken": `)

	called := false
	err := Run[WrongReturn](WithArgs(), WithServices(func(*hosting.Context, di.Container) error {
		called = true
		return nil
	}))
	appErr, _ := errors.AsAppError(err)
	if appErr == nil || appErr.Cause != nil {
		t.Fatalf("expected shape failure without cause, got %v", err)
	}
	if called {
		t.Error("expected no host work for a non-conforming type")
	}
}

func TestLoggingOverrideReplacesDefault(t *testing.T) {
	isolate(t)
	marker := markerLogger(t)
	greeterLog = sharedLog{}

	calls := 0
	err := Run[*Greeter](WithArgs(), WithLogging(func(_ *hosting.Context, lb *logger.Builder) {
		calls++
		lb.ClearSinks()
	}))
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected logging override called once, got %d", calls)
	}
	if logger.GetGlobalLogger() != marker {
		t.Error("expected default logging not to install a global logger")
	}
}

func TestDefaultLoggingInstallsGlobalLogger(t *testing.T) {
	isolate(t)
	marker := markerLogger(t)
	greeterLog = sharedLog{}

	if err := Run[*Greeter](WithArgs()); err != nil {
		t.Fatal(err)
	}
	global := logger.GetGlobalLogger()
	if global == marker {
		t.Fatal("expected default logging to replace the global logger")
	}
	if global.GetLogger().GetLevel() != zerolog.TraceLevel {
		t.Errorf("expected trace level global logger, got %s", global.GetLogger().GetLevel())
	}
}

func TestLogRecordsEnriched(t *testing.T) {
	isolate(t)
	var buf bytes.Buffer

	err := Run[*Inspector](WithArgs(), WithLogging(func(_ *hosting.Context, lb *logger.Builder) {
		lb.ClearSinks()
		lb.AddWriter("buf", &buf)
		lb.SetMinimumLevel("debug")
	}), inspect(func(p *Inspector) error {
		log, err := di.Resolve[*logger.Logger](p.c, di.Pkg.Logger)
		if err != nil {
			return err
		}
		log.Info("from application")
		return nil
	}))
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, "from application") {
		t.Fatalf("expected application record, got %q", out)
	}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if !strings.Contains(line, `"application":"Inspector"`) || !strings.Contains(line, `"run_id":"`) {
			t.Errorf("expected every record enriched, got %q", line)
		}
	}
}

func TestDefaultConfigurationPrecedence(t *testing.T) {
	dir := isolate(t)
	t.Setenv(hosting.EnvironmentVariable, "staging")
	writeFile(t, dir, "appsettings.json", `{"Greeting": {"Text": "base", "Target": "base"}, "Count": 1}`)
	writeFile(t, dir, "appsettings.staging.json", `{"Greeting": {"Text": "staging", "Target": "staging"}}`)
	t.Setenv("GREETING__TARGET", "env")

	var text, target string
	var count int
	err := Run[*Inspector](WithArgs(), quietLogging(), inspect(func(p *Inspector) error {
		cfg, err := di.Resolve[*config.Configuration](p.c, di.Pkg.Config)
		if err != nil {
			return err
		}
		text, target, count = cfg.GetString("greeting.text"), cfg.GetString("greeting.target"), cfg.GetInt("count")
		return nil
	}))
	if err != nil {
		t.Fatal(err)
	}

	if count != 1 {
		t.Errorf("expected base value, got %d", count)
	}
	if text != "staging" {
		t.Errorf("expected environment file to override base file, got %q", text)
	}
	if target != "env" {
		t.Errorf("expected environment variable to override files, got %q", target)
	}
}

func TestConfigurationOverrideReplacesDefault(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, "appsettings.json", `{"source": "file"}`)

	host, err := CreateHost[*Greeter](WithArgs(), quietLogging(), WithConfiguration(func(_ *hosting.Context, cb *config.Builder) error {
		cb.ClearSources().AddMap(map[string]any{"source": "override"})
		return nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer host.Close()

	if got := host.Configuration.GetString("source"); got != "override" {
		t.Errorf("expected override source, got %q", got)
	}
}

func TestConfigurationErrorIsWrapped(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, "appsettings.json", `{"broken": `)

	err := Run[*Greeter](WithArgs(), quietLogging())
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeBootstrap || appErr.Cause == nil {
		t.Fatalf("expected bootstrap error with cause, got %v", err)
	}
	if !strings.Contains(appErr.Cause.Error(), "appsettings.json") {
		t.Errorf("expected cause to name the file, got %v", appErr.Cause)
	}
}

func TestScopedResolvableFromRootByDefault(t *testing.T) {
	isolate(t)

	host, err := CreateHost[*Greeter](WithArgs(), quietLogging(), WithServices(func(_ *hosting.Context, c di.Container) error {
		return c.RegisterScoped("unit-of-work", func() *sharedLog { return &sharedLog{} })
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer host.Close()

	if _, err := host.Services.Resolve("unit-of-work"); err != nil {
		t.Errorf("expected scoped service from root, got %v", err)
	}
	if _, err := di.ResolveType[*Greeter](host.Services); err != nil {
		t.Errorf("expected application registered, got %v", err)
	}
}

func TestContainerOptionsOverride(t *testing.T) {
	isolate(t)

	err := Run[*Inspector](WithArgs(), quietLogging(),
		WithServices(func(_ *hosting.Context, c di.Container) error {
			return c.RegisterScoped("unit-of-work", func() *sharedLog { return &sharedLog{} })
		}),
		WithContainerOptions(func(_ *hosting.Context, opts *di.ProviderOptions) {
			opts.ValidateScopes = true
		}),
		inspect(func(p *Inspector) error {
			_, err := p.c.Resolve("unit-of-work")
			return err
		}))

	appErr, ok := errors.AsAppError(err)
	if !ok || !errors.IsCode(appErr.Cause, errors.ErrCodeScopeViolation) {
		t.Fatalf("expected scope violation as cause, got %v", err)
	}
}

type resource struct {
	mu     sync.Mutex
	closed bool
}

func (r *resource) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func TestHostClosedOnEveryPath(t *testing.T) {
	for _, fail := range []bool{false, true} {
		res := &resource{}
		isolate(t)

		_ = Run[*Inspector](WithArgs(), quietLogging(),
			WithServices(func(_ *hosting.Context, c di.Container) error {
				return c.Register("resource", func() *resource { return res })
			}),
			inspect(func(p *Inspector) error {
				if _, err := p.c.Resolve("resource"); err != nil {
					return err
				}
				if fail {
					return stderrors.New("fail after acquiring")
				}
				return nil
			}))

		res.mu.Lock()
		closed := res.closed
		res.mu.Unlock()
		if !closed {
			t.Errorf("fail=%v: expected container resources released", fail)
		}
	}
}

func TestServicesOverrideIsAdditive(t *testing.T) {
	isolate(t)

	host, err := CreateApplicationHost[*Greeter](WithArgs(), quietLogging(), WithServices(func(_ *hosting.Context, c di.Container) error {
		return c.RegisterSingleton("extra", 42)
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer host.Close()

	if !host.Services.IsRegistered(di.TypeKey[*Greeter]()) || !host.Services.IsRegistered("extra") {
		t.Error("expected both the application and the extra service")
	}
	if host.Services.Options().ValidateScopes {
		t.Error("expected scope validation disabled by default")
	}
	if host.Environment.ApplicationName != "Greeter" {
		t.Errorf("expected application name Greeter, got %q", host.Environment.ApplicationName)
	}
}

func TestConstructorTypeMismatch(t *testing.T) {
	isolate(t)

	err := Run[*Greeter](WithArgs(), quietLogging(), WithConstructor(func(di.Container) (*Failing, error) {
		return &Failing{}, nil
	}))
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Cause == nil || !strings.Contains(appErr.Cause.Error(), "does not construct") {
		t.Errorf("expected constructor mismatch as cause, got %v", err)
	}
}

func TestConstructorErrorIsWrapped(t *testing.T) {
	isolate(t)
	sentinel := stderrors.New("cannot construct")

	err := Run[*Greeter](WithArgs(), quietLogging(), WithConstructor(func(di.Container) (*Greeter, error) {
		return nil, sentinel
	}))
	if !IsBootstrapError(err) || !stderrors.Is(err, sentinel) {
		t.Errorf("expected constructor error reachable from bootstrap error, got %v", err)
	}
}

func TestRunSpan(t *testing.T) {
	isolate(t)
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	greeterLog = sharedLog{}
	if err := Run[*Greeter](WithArgs(), quietLogging(), WithTracerProvider(tp)); err != nil {
		t.Fatal(err)
	}
	_ = Run[*Failing](WithArgs(), quietLogging(), WithTracerProvider(tp), WithConstructor(func(di.Container) (*Failing, error) {
		return &Failing{err: stderrors.New("boom")}, nil
	}))

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	for _, s := range spans {
		if s.Name() != spanName {
			t.Errorf("unexpected span name %q", s.Name())
		}
	}

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsString()
	}
	if attrs["application.name"] != "Greeter" || attrs["run.id"] == "" {
		t.Errorf("unexpected span attributes %v", attrs)
	}
	if spans[0].Status().Code == codes.Error {
		t.Error("expected successful run span not to be an error")
	}
	if spans[1].Status().Code != codes.Error {
		t.Error("expected failed run span to record the error")
	}
}

func TestNoSpanForShapeFailure(t *testing.T) {
	isolate(t)
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_ = Run[NoRun](WithArgs(), WithTracerProvider(tp))
	if n := len(sr.Ended()) + len(sr.Started()); n != 0 {
		t.Errorf("expected no spans, got %d", n)
	}
}

func TestConfigureDefaultLogging(t *testing.T) {
	t.Cleanup(func() { _ = logger.Shutdown() })

	lb := logger.NewBuilder()
	lb.AddWriter("previous", &bytes.Buffer{})
	ConfigureDefaultLogging(lb)
	first := logger.GetGlobalLogger()

	sinks := lb.Sinks()
	if len(sinks) != 1 || sinks[0].Name != "console" || !sinks[0].Dispose {
		t.Fatalf("expected a single disposable console sink, got %+v", sinks)
	}
	if sinks[0].Closer == nil {
		t.Error("expected the console sink to carry a closer")
	}
	if lb.MinimumLevel() != zerolog.TraceLevel {
		t.Errorf("expected trace minimum level, got %s", lb.MinimumLevel())
	}

	ConfigureDefaultLogging(logger.NewBuilder())
	if logger.GetGlobalLogger() == first {
		t.Error("expected the last call to replace the global logger")
	}
}

func TestIsBootstrapError(t *testing.T) {
	if IsBootstrapError(nil) || IsBootstrapError(stderrors.New("other")) {
		t.Error("expected false for non-bootstrap errors")
	}
	if !IsBootstrapError(bootstrapError("App", stderrors.New("x"))) || !IsBootstrapError(shapeError("App")) {
		t.Error("expected true for bootstrap errors")
	}
}

func TestBootstrapErrorText(t *testing.T) {
	cause := stderrors.New("config missing")
	err := bootstrapError("Greeter", cause)

	want := "Could not construct console host for application 'Greeter', see innerException for details."
	if err.Message != want {
		t.Errorf("message = %q, want %q", err.Message, want)
	}
	text := err.Error()
	if !strings.HasPrefix(text, string(errors.ErrCodeBootstrap)+": ") || !strings.Contains(text, want) || !strings.Contains(text, "config missing") {
		t.Errorf("expected code, message and cause in %q", text)
	}
	if shape := shapeError("Greeter").Error(); strings.Contains(shape, "cause:") {
		t.Errorf("expected no cause in shape error text, got %q", shape)
	}
}

func TestTypeName(t *testing.T) {
	if got := typeName[*Greeter](); got != "Greeter" {
		t.Errorf("typeName[*Greeter] = %q", got)
	}
	if got := typeName[Panicking](); got != "Panicking" {
		t.Errorf("typeName[Panicking] = %q", got)
	}
	if got := typeName[[]int](); got != "[]int" {
		t.Errorf("typeName[[]int] = %q", got)
	}
}

func TestContainerOptionsReplaceDevelopmentDefaults(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want di.ProviderOptions
	}{
		{"default", nil, di.ProviderOptions{}},
		{"empty override", []Option{WithContainerOptions(func(*hosting.Context, *di.ProviderOptions) {})}, di.ProviderOptions{}},
		{"override", []Option{WithContainerOptions(func(_ *hosting.Context, opts *di.ProviderOptions) {
			opts.ValidateOnBuild = true
		})}, di.ProviderOptions{ValidateOnBuild: true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			isolate(t)
			t.Setenv(hosting.EnvironmentVariable, hosting.EnvironmentDevelopment)

			constructed := 0
			opts := append([]Option{WithArgs(), quietLogging(), WithConstructor(func(di.Container) (*Greeter, error) {
				constructed++
				return &Greeter{}, nil
			})}, tc.opts...)

			host, err := CreateHost[*Greeter](opts...)
			if err != nil {
				t.Fatal(err)
			}
			defer host.Close()

			if !host.Environment.IsDevelopment() {
				t.Fatalf("expected development environment, got %q", host.Environment.Name)
			}
			if got := host.Services.Options(); got != tc.want {
				t.Errorf("options = %+v, want %+v", got, tc.want)
			}
			wantConstructed := 0
			if tc.want.ValidateOnBuild {
				wantConstructed = 1
			}
			if constructed != wantConstructed {
				t.Errorf("expected application constructed %d times at build, got %d", wantConstructed, constructed)
			}
		})
	}
}
