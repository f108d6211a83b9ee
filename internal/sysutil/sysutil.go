// Package sysutil holds process bootstrap helpers shared by the binaries:
// logger construction, log level selection and build version resolution.
package sysutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var levels = map[string]zerolog.Level{
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
	"fatal":   zerolog.FatalLevel,
	"panic":   zerolog.PanicLevel,
}

// SetLogLevel sets the global zerolog level from LOG_LEVEL style input and
// returns the level applied. Unknown or empty names mean info.
func SetLogLevel(name string) zerolog.Level {
	lvl, ok := levels[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return lvl
}

// NewLogger builds the process logger. Pretty output is meant for local
// development; production writes one JSON object per line.
func NewLogger(w io.Writer, pretty bool, service string) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Str("service", service).Logger()
}

// Version resolves the reported build version. APP_VERSION wins over the
// linker-injected value and "dev" is the last resort.
func Version(build string) string {
	for _, v := range []string{os.Getenv("APP_VERSION"), build} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return "dev"
}
