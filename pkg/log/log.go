// Package log configures structured logging for flowmesh components.
package log

import (
	"log/slog"
	"os"
)

// ServiceName tags every log line emitted through the default logger.
const ServiceName = "flowmesh"

// Setup installs the process-wide default logger. Unrecognized levels fall
// back to info.
func Setup(logLevel string) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})

	slog.SetDefault(slog.New(handler).With("service", ServiceName))
}

// WithModule returns the default logger scoped to one component.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
