package logging

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger creates a structured logger appropriate for the environment.
// Production uses JSON format, development uses human-readable text.
// Both write to stderr.
func NewLogger(env string) *slog.Logger {
	return NewLoggerWithOutput(env, os.Stderr)
}

// NewLoggerWithOutput is NewLogger writing to w.
func NewLoggerWithOutput(env string, w io.Writer) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if env == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
