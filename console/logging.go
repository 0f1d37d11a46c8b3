package console

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/kbukum/consolehost/logger"
)

// ConfigureDefaultLogging removes every sink from b, installs a trace level
// console logger as the process-wide logger and registers it as the only
// sink of b, flushed when the host shuts down. The last call wins.
func ConfigureDefaultLogging(b *logger.Builder) {
	b.ClearSinks()

	writer := logger.NewConsoleWriter(os.Stdout, logger.ThemeLiterate, "")
	zl := zerolog.New(writer).
		Level(zerolog.TraceLevel).
		Hook(logger.ContextHook{}).
		With().Timestamp().Logger()
	logger.SetGlobalLogger(logger.FromZerolog(zl, "console", nil))

	b.SetMinimumLevel(zerolog.TraceLevel.String())
	b.AddHook(logger.ContextHook{})
	b.AddSink(logger.Sink{
		Name:    "console",
		Writer:  writer,
		Level:   zerolog.TraceLevel,
		Dispose: true,
		Closer:  logger.FlushCloser(os.Stdout),
	})
}
