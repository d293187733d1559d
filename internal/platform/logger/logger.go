package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. Handlers and services take it as a
// dependency; nothing logs through a package-level default.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
