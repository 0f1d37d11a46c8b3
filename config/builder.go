package config

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/kbukum/consolehost/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Builder collects configuration sources in precedence order.
type Builder struct {
	basePath string
	sources  []Source
}

// NewBuilder returns a builder with no sources.
func NewBuilder() *Builder {
	return &Builder{}
}

// SetBasePath sets the directory relative file sources added after this
// call are resolved against.
func (b *Builder) SetBasePath(path string) *Builder {
	b.basePath = path
	return b
}

// BasePath returns the current base path.
func (b *Builder) BasePath() string {
	return b.basePath
}

// ClearSources removes every source added so far.
func (b *Builder) ClearSources() *Builder {
	b.sources = nil
	return b
}

// AddSource appends a custom source.
func (b *Builder) AddSource(s Source) *Builder {
	b.sources = append(b.sources, s)
	return b
}

// AddEnvironmentVariables appends the process environment, optionally
// restricted to variables starting with prefix.
func (b *Builder) AddEnvironmentVariables(prefix string) *Builder {
	return b.AddSource(&EnvSource{Prefix: prefix})
}

// AddJSONFile appends a JSON file source.
func (b *Builder) AddJSONFile(path string, optional, reloadOnChange bool) *Builder {
	return b.AddSource(&JSONFileSource{
		Path:           path,
		BasePath:       b.basePath,
		Optional:       optional,
		ReloadOnChange: reloadOnChange,
	})
}

// AddDotEnv appends a .env file source.
func (b *Builder) AddDotEnv(path string, optional bool) *Builder {
	return b.AddSource(&DotEnvSource{Path: path, BasePath: b.basePath, Optional: optional})
}

// AddCommandLine appends command-line arguments.
func (b *Builder) AddCommandLine(args []string) *Builder {
	return b.AddSource(&CommandLineSource{Args: args})
}

// AddMap appends an in-memory source.
func (b *Builder) AddMap(values map[string]any) *Builder {
	return b.AddSource(&MapSource{Values: values})
}

// Sources returns a copy of the registered sources in precedence order.
func (b *Builder) Sources() []Source {
	out := make([]Source, len(b.sources))
	copy(out, b.sources)
	return out
}

// Build validates the sources, loads them and starts watching files added
// with reloadOnChange. The caller owns the returned Configuration and must
// Close it.
func (b *Builder) Build() (*Configuration, error) {
	for i, s := range b.sources {
		if err := getValidator().Struct(s); err != nil {
			if _, ok := err.(*validator.InvalidValidationError); ok {
				continue
			}
			return nil, errors.Wrap(errors.ErrCodeInvalidInput,
				fmt.Sprintf("config source %d (%T) is invalid", i, s), err).WithDetail("source", i)
		}
	}

	c := &Configuration{sources: b.Sources()}
	if err := c.Reload(); err != nil {
		return nil, err
	}

	var watched []string
	for _, s := range c.sources {
		if r, ok := s.(reloadable); ok {
			if path, watch := r.watchedFile(); watch {
				watched = append(watched, path)
			}
		}
	}
	if len(watched) > 0 {
		w, err := newWatcher(watched, c.onFileChanged)
		if err != nil {
			return nil, err
		}
		c.watcher = w
	}
	return c, nil
}
