package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const colorReset = "\033[0m"

// literatePalette colors level tags the way the literate console theme does:
// quiet levels dim, warnings and errors loud.
var literatePalette = map[string]string{
	"TRACE": "\033[90m",
	"DEBUG": "\033[36m",
	"INFO":  "\033[32m",
	"WARN":  "\033[33m",
	"ERROR": "\033[31m",
	"FATAL": "\033[35m",
	"PANIC": "\033[1;31m",
}

var levelTags = map[string]string{
	"TRACE": "[TRC]",
	"DEBUG": "[DBG]",
	"INFO":  "[INF]",
	"WARN":  "[WRN]",
	"ERROR": "[ERR]",
	"FATAL": "[FTL]",
	"PANIC": "[PNC]",
}

// NewConsoleWriter returns a human-readable zerolog writer for out using the
// named theme (ThemeLiterate or ThemePlain). Unknown themes render plain.
func NewConsoleWriter(out io.Writer, theme, serviceName string) zerolog.ConsoleWriter {
	colored := theme == ThemeLiterate
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "15:04:05",
		NoColor:    !colored,
		FormatLevel: func(i interface{}) string {
			lvl := strings.ToUpper(fmt.Sprintf("%s", i))
			tag, ok := levelTags[lvl]
			if !ok {
				tag = fmt.Sprintf("[%s]", lvl)
			}
			if colored {
				if color, ok := literatePalette[lvl]; ok {
					tag = color + tag + colorReset
				}
			}
			if serviceName != "" && serviceName != "default" && len(serviceName) >= 3 {
				svc := fmt.Sprintf("[%s]", strings.ToUpper(serviceName[:3]))
				if colored {
					svc = "\033[34m" + svc + colorReset
				}
				return svc + tag
			}
			return tag
		},
		FormatMessage: func(i interface{}) string {
			if i == nil {
				return ""
			}
			return fmt.Sprintf("%s", i)
		},
		FormatFieldName: func(i interface{}) string {
			return fmt.Sprintf("%s:", i)
		},
		FormatFieldValue: func(i interface{}) string {
			if i == nil {
				return ""
			}
			return fmt.Sprintf("%s", i)
		},
	}
}

// FlushCloser returns a closer that flushes f without closing it, for sinks
// writing to a stream the process keeps using. Streams that cannot be synced,
// such as terminals and pipes, are left alone.
func FlushCloser(f *os.File) io.Closer {
	return flushCloser{f: f}
}

type flushCloser struct {
	f *os.File
}

func (c flushCloser) Close() error {
	fi, err := c.f.Stat()
	if err != nil || !fi.Mode().IsRegular() {
		return nil
	}
	return c.f.Sync()
}
