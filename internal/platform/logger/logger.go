package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Components receive it via
// constructor options rather than reading a package global.
func New(component string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler).With("component", component)
}
