package hosting

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kbukum/consolehost/component"
	"github.com/kbukum/consolehost/config"
	"github.com/kbukum/consolehost/di"
	"github.com/kbukum/consolehost/logger"
	"github.com/kbukum/consolehost/version"
)

// DefaultShutdownTimeout bounds Close when no timeout is configured.
const DefaultShutdownTimeout = 15 * time.Second

// Builder records host configuration callbacks. Callbacks run when Build
// is called: all host configuration callbacks first, then app configuration,
// logging, services and provider options. Within one phase callbacks run in
// the order they were added.
type Builder struct {
	mu sync.Mutex

	args       []string
	hostConfig []func(*config.Builder)
	appConfig  []func(*Context, *config.Builder) error
	logging    []func(*Context, *logger.Builder)
	services   []func(*Context, di.Container) error
	provider   []func(*Context, *di.ProviderOptions)

	onStarted  []Hook
	onStopping []Hook

	shutdownTimeout time.Duration
	built           bool
}

// NewBuilder returns a builder with no callbacks. The environment defaults
// to production and the content root to the working directory.
func NewBuilder(args []string) *Builder {
	return &Builder{
		args:            append([]string(nil), args...),
		shutdownTimeout: DefaultShutdownTimeout,
	}
}

// CreateDefaultBuilder returns a builder preconfigured the common way:
//
//   - host configuration from APP_* environment variables and args
//   - app configuration from appsettings.json, appsettings.<env>.json,
//     environment variables and args, later sources winning
//   - logging from the "logging" configuration section, console by default
//   - scope validation in the development environment
func CreateDefaultBuilder(args []string) *Builder {
	b := NewBuilder(args)

	b.ConfigureHostConfiguration(func(cb *config.Builder) {
		cb.AddEnvironmentVariables(EnvPrefix).AddCommandLine(b.args)
	})

	b.ConfigureAppConfiguration(func(ctx *Context, cb *config.Builder) error {
		cb.AddJSONFile("appsettings.json", true, true).
			AddJSONFile(fmt.Sprintf("appsettings.%s.json", ctx.Environment.Name), true, true).
			AddEnvironmentVariables("").
			AddCommandLine(b.args)
		return nil
	})

	b.ConfigureLogging(ConfigureLoggingFromConfiguration)

	b.UseServiceProvider(func(ctx *Context, opts *di.ProviderOptions) {
		opts.ValidateScopes = ctx.Environment.IsDevelopment()
		opts.ValidateOnBuild = ctx.Environment.IsDevelopment()
	})
	return b
}

// ConfigureLoggingFromConfiguration replaces the builder's sinks with the
// sink described by the "logging" configuration section. An invalid section
// falls back to the defaults and logs a warning.
func ConfigureLoggingFromConfiguration(ctx *Context, lb *logger.Builder) {
	var cfg logger.Config
	if ctx.Configuration != nil {
		if err := ctx.Configuration.UnmarshalKey("logging", &cfg); err != nil {
			logger.Warn("Invalid logging configuration, using defaults", logger.ErrorFields("configure_logging", err))
			cfg = logger.Config{}
		}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		logger.Warn("Invalid logging configuration, using defaults", logger.ErrorFields("configure_logging", err))
		cfg = logger.Config{}
		cfg.ApplyDefaults()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = ctx.Environment.ApplicationName
	}

	lb.ClearSinks()
	lb.AddFromConfig(&cfg)
}

// ConfigureHostConfiguration adds a callback for the host configuration,
// read before anything else to determine the environment.
func (b *Builder) ConfigureHostConfiguration(fn func(*config.Builder)) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hostConfig = append(b.hostConfig, fn)
	return b
}

// ConfigureAppConfiguration adds a callback for the app configuration sources.
func (b *Builder) ConfigureAppConfiguration(fn func(*Context, *config.Builder) error) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appConfig = append(b.appConfig, fn)
	return b
}

// ConfigureLogging adds a callback for the logging sinks.
func (b *Builder) ConfigureLogging(fn func(*Context, *logger.Builder)) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logging = append(b.logging, fn)
	return b
}

// ConfigureServices adds a callback registering services in the container.
func (b *Builder) ConfigureServices(fn func(*Context, di.Container) error) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.services = append(b.services, fn)
	return b
}

// UseServiceProvider adds a callback adjusting the container options.
func (b *Builder) UseServiceProvider(fn func(*Context, *di.ProviderOptions)) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.provider = append(b.provider, fn)
	return b
}

// UseEnvironment fixes the environment name, overriding APP_ENVIRONMENT.
func (b *Builder) UseEnvironment(name string) *Builder {
	return b.useHostSetting(KeyEnvironment, name)
}

// UseContentRoot fixes the content root directory.
func (b *Builder) UseContentRoot(path string) *Builder {
	return b.useHostSetting(KeyContentRoot, path)
}

// UseApplicationName fixes the application name.
func (b *Builder) UseApplicationName(name string) *Builder {
	return b.useHostSetting(KeyApplicationName, name)
}

func (b *Builder) useHostSetting(key, value string) *Builder {
	return b.ConfigureHostConfiguration(func(cb *config.Builder) {
		cb.AddMap(map[string]any{key: value})
	})
}

// OnStarted adds hooks run after the host components have started.
func (b *Builder) OnStarted(hooks ...Hook) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStarted = append(b.onStarted, hooks...)
	return b
}

// OnStopping adds hooks run before the host components are stopped.
func (b *Builder) OnStopping(hooks ...Hook) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStopping = append(b.onStopping, hooks...)
	return b
}

// WithShutdownTimeout sets the maximum duration of Host.Close.
func (b *Builder) WithShutdownTimeout(d time.Duration) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d > 0 {
		b.shutdownTimeout = d
	}
	return b
}

// Build runs every callback and returns the host. A builder can be built
// only once. Errors returned by callbacks and configuration sources are
// returned unchanged; everything acquired before the failure is released.
func (b *Builder) Build() (host *Host, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.built {
		return nil, fmt.Errorf("host builder can only be built once")
	}
	b.built = true

	var cleanup []func() error
	defer func() {
		if err == nil {
			return
		}
		for i := len(cleanup) - 1; i >= 0; i-- {
			_ = cleanup[i]()
		}
	}()

	// Host configuration
	hostCB := config.NewBuilder()
	for _, fn := range b.hostConfig {
		fn(hostCB)
	}
	hostCfg, err := hostCB.Build()
	if err != nil {
		return nil, err
	}
	cleanup = append(cleanup, hostCfg.Close)

	env := resolveEnvironment(hostCfg)
	ctx := &Context{
		Environment:   env,
		Configuration: hostCfg,
		Properties:    make(map[string]any),
	}

	// App configuration
	appCB := config.NewBuilder().SetBasePath(env.ContentRoot)
	for _, fn := range b.appConfig {
		if err = fn(ctx, appCB); err != nil {
			return nil, err
		}
	}
	appCfg, err := appCB.Build()
	if err != nil {
		return nil, err
	}
	cleanup = append(cleanup, appCfg.Close)
	ctx.Configuration = appCfg

	// Logging
	lb := logger.NewBuilder()
	for _, fn := range b.logging {
		fn(ctx, lb)
	}
	log := lb.Build(env.ApplicationName)
	cleanup = append(cleanup, log.Close)

	// Services
	container := di.NewContainer()
	cleanup = append(cleanup, container.Close)
	components := component.NewRegistry()
	if err = registerHostServices(container, appCfg, log, env, components); err != nil {
		return nil, err
	}
	for _, fn := range b.services {
		if err = fn(ctx, container); err != nil {
			return nil, err
		}
	}

	// Provider options
	var opts di.ProviderOptions
	for _, fn := range b.provider {
		fn(ctx, &opts)
	}
	if err = container.ApplyOptions(opts); err != nil {
		return nil, err
	}

	log.Debug("Host built", map[string]interface{}{
		logger.FieldEnvironment: env.Name,
		"version":               version.Short(),
		"content_root":          env.ContentRoot,
		"services":              len(container.Registrations()),
		"validate_scopes":       opts.ValidateScopes,
	})

	return &Host{
		Services:        container,
		Configuration:   appCfg,
		Logger:          log,
		Environment:     env,
		Components:      components,
		hostConfig:      hostCfg,
		onStarted:       append([]Hook(nil), b.onStarted...),
		onStopping:      append([]Hook(nil), b.onStopping...),
		shutdownTimeout: b.shutdownTimeout,
	}, nil
}

func registerHostServices(c di.Container, cfg *config.Configuration, log *logger.Logger, env Environment, components *component.Registry) error {
	return stderrors.Join(
		c.RegisterSingleton(di.Pkg.Config, cfg),
		c.RegisterSingleton(di.Pkg.Logger, log),
		c.RegisterSingleton(di.Pkg.Environment, env),
		c.RegisterSingleton(di.Pkg.Components, components),
	)
}

func resolveEnvironment(hostCfg *config.Configuration) Environment {
	env := Environment{
		Name:            hostCfg.GetString(KeyEnvironment),
		ApplicationName: hostCfg.GetString(KeyApplicationName),
		ContentRoot:     hostCfg.GetString(KeyContentRoot),
	}
	if env.Name == "" {
		env.Name = DefaultEnvironment
	}
	if env.ContentRoot == "" {
		if wd, err := os.Getwd(); err == nil {
			env.ContentRoot = wd
		} else {
			env.ContentRoot = "."
		}
	}
	if abs, err := filepath.Abs(env.ContentRoot); err == nil {
		env.ContentRoot = abs
	}
	if env.ApplicationName == "" && len(os.Args) > 0 {
		env.ApplicationName = filepath.Base(os.Args[0])
	}
	return env
}
