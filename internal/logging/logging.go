// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
)

// New returns a text logger on w. Debug output is enabled by --debug;
// otherwise only warnings and errors are shown so command output stays clean.
func New(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
