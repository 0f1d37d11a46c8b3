package logger

import (
	stderrors "errors"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Sink is one logging backend registered on a Builder.
type Sink struct {
	// Name identifies the sink for RemoveSink and introspection.
	Name string
	// Writer receives formatted records.
	Writer io.Writer
	// Level is the minimum level this sink accepts on top of the builder level.
	Level zerolog.Level
	// Dispose marks the sink to be released when the host shuts down.
	Dispose bool
	// Closer releases the sink. Only consulted when Dispose is set.
	Closer io.Closer
}

// Builder collects logging backends for a host. Hosts hand the builder to
// logging callbacks, then call Build once to obtain the host logger.
type Builder struct {
	sinks  []Sink
	level  zerolog.Level
	fields map[string]interface{}
	hooks  []zerolog.Hook
}

// NewBuilder returns an empty builder at info level.
func NewBuilder() *Builder {
	return &Builder{
		level:  zerolog.InfoLevel,
		fields: make(map[string]interface{}),
	}
}

// ClearSinks removes every registered sink.
func (b *Builder) ClearSinks() {
	b.sinks = nil
}

// AddSink registers a backend. A sink with an existing name replaces it.
func (b *Builder) AddSink(s Sink) {
	for i := range b.sinks {
		if b.sinks[i].Name == s.Name && s.Name != "" {
			b.sinks[i] = s
			return
		}
	}
	b.sinks = append(b.sinks, s)
}

// RemoveSink removes the sink registered under name.
func (b *Builder) RemoveSink(name string) {
	kept := b.sinks[:0]
	for _, s := range b.sinks {
		if s.Name != name {
			kept = append(kept, s)
		}
	}
	b.sinks = kept
}

// AddConsole registers a stdout console sink rendered with theme.
func (b *Builder) AddConsole(theme string) {
	b.AddSink(Sink{
		Name:   "console",
		Writer: NewConsoleWriter(os.Stdout, theme, ""),
		Level:  zerolog.TraceLevel,
	})
}

// AddFromConfig registers the sink described by cfg (console, stderr or a
// rotated file) and applies its level. The file sink is disposed with the
// built logger.
func (b *Builder) AddFromConfig(cfg *Config) {
	out, closer := outputWriter(cfg)
	w := out
	if isConsoleFormat(cfg.Format) {
		w = NewConsoleWriter(out, themeOf(cfg), cfg.ServiceName)
	}
	name := "console"
	if closer != nil {
		name = "file"
	}
	b.AddSink(Sink{
		Name:    name,
		Writer:  w,
		Level:   zerolog.TraceLevel,
		Dispose: closer != nil,
		Closer:  closer,
	})
	b.SetMinimumLevel(cfg.Level)
}

// AddWriter registers a JSON sink writing to w.
func (b *Builder) AddWriter(name string, w io.Writer) {
	b.AddSink(Sink{Name: name, Writer: w, Level: zerolog.TraceLevel})
}

// SetMinimumLevel sets the lowest level any sink receives. Unknown level
// names leave the current level unchanged.
func (b *Builder) SetMinimumLevel(level string) {
	if lvl, err := zerolog.ParseLevel(level); err == nil && level != "" {
		b.level = lvl
	}
}

// MinimumLevel returns the configured minimum level.
func (b *Builder) MinimumLevel() zerolog.Level {
	return b.level
}

// Enrich adds a field to every record written by the built logger.
func (b *Builder) Enrich(key string, value interface{}) {
	b.fields[key] = value
}

// AddHook adds a zerolog hook run for every record of the built logger.
func (b *Builder) AddHook(h zerolog.Hook) {
	b.hooks = append(b.hooks, h)
}

// Sinks returns a copy of the registered sinks.
func (b *Builder) Sinks() []Sink {
	out := make([]Sink, len(b.sinks))
	copy(out, b.sinks)
	return out
}

// Build creates the host logger fanning out to every sink. Closing the
// returned logger releases the sinks marked Dispose. With no sinks the
// logger discards everything.
func (b *Builder) Build(serviceName string) *Logger {
	if len(b.sinks) == 0 {
		return &Logger{logger: zerolog.Nop(), service: serviceName}
	}

	writers := make([]io.Writer, 0, len(b.sinks))
	var disposables []io.Closer
	for _, s := range b.sinks {
		writers = append(writers, levelFilter{w: s.Writer, min: s.Level})
		if s.Dispose && s.Closer != nil {
			disposables = append(disposables, s.Closer)
		}
	}

	zc := zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(b.level).With().Timestamp()
	if len(b.fields) > 0 {
		zc = zc.Fields(b.fields)
	}

	zl := zc.Logger()
	if len(b.hooks) > 0 {
		zl = zl.Hook(b.hooks...)
	}

	l := &Logger{logger: zl, service: serviceName}
	if len(disposables) > 0 {
		l.closer = closeAll(disposables)
	}
	return l
}

// levelFilter drops records below min before they reach w.
type levelFilter struct {
	w   io.Writer
	min zerolog.Level
}

func (f levelFilter) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

func (f levelFilter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < f.min {
		return len(p), nil
	}
	if lw, ok := f.w.(zerolog.LevelWriter); ok {
		return lw.WriteLevel(level, p)
	}
	return f.w.Write(p)
}

type closeAll []io.Closer

func (c closeAll) Close() error {
	var errs []error
	for _, closer := range c {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
