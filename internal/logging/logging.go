// Package logging builds the zerolog loggers used across the tool.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/simonvc/confutil/internal/config"
)

// New returns a logger writing to w at the given level. Format "console"
// gives human readable output, anything else JSON lines.
func New(level, format string, w io.Writer) zerolog.Logger {
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Str("service", "confutil").
		Logger()
}

// FromConfig builds the logger described by cfg.
func FromConfig(cfg config.LoggingConfig) zerolog.Logger {
	var out io.Writer = os.Stderr
	if cfg.Output == "stdout" {
		out = os.Stdout
	}
	return New(cfg.Level, cfg.Format, out)
}

// ParseLevel converts a level name to a zerolog.Level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
