package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. EDUCAID_LOG_LEVEL selects
// verbosity (debug, info, warn, error); anything else falls back to info.
func New() *slog.Logger {
	level := slog.LevelInfo
	switch os.Getenv("EDUCAID_LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
