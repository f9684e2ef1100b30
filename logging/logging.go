// Package logging builds the structured loggers used across scribe.
//
// Standard output carries the conversation itself, so log records go to a
// trace file or are dropped entirely.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// New returns a JSON logger writing to w at the given level. A nil writer
// yields a logger that discards everything.
func New(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = io.Discard
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	})
	return slog.New(handler)
}

// Discard returns a logger that drops all records.
func Discard() *slog.Logger {
	return New(io.Discard, slog.LevelError)
}

// Component creates a component-specific logger so every record names the
// subsystem that produced it.
func Component(base *slog.Logger, component string) *slog.Logger {
	if base == nil {
		base = Discard()
	}
	return base.With(slog.String("component", component))
}

// ParseLevel maps a config value to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
