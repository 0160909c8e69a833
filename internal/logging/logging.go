// Package logging wires up zerolog the way the rest of this codebase's
// sibling servers do: JSON to stdout in production, a colorized console
// writer for local development.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds the process-wide logger for the given level/format pair.
func New(level, format string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var writer = os.Stdout
	var logger zerolog.Logger
	if format == "pretty" || format == "text" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: writer, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(writer).With().Timestamp().Logger()
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}
