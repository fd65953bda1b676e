// Package logger builds the zerolog logger shared by the server and the CLI.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// FormatPretty selects the human-readable console writer. Anything else logs JSON.
const FormatPretty = "pretty"

// Setup logs to stdout.
func Setup(level, format string) zerolog.Logger {
	return SetupWriter(os.Stdout, level, format)
}

// SetupWriter logs to out. The terminal UI passes a file so log lines do not
// tear the rendered view. An unknown level falls back to info.
func SetupWriter(out io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if format == FormatPretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(out).With().Timestamp().Caller().Str("service", "attemptd").Logger()
}
