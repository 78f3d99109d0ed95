// Package logger provides JSON structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a logger writing JSON lines to stdout. level accepts the usual
// zerolog names (trace, debug, info, warn, error); anything unparseable
// falls back to info.
func New(level string) zerolog.Logger {
	return NewWithOutput(level, os.Stdout)
}

func NewWithOutput(level string, output io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}

	return zerolog.New(output).Level(parsed).With().Timestamp().Logger()
}
