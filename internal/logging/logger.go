// Package logging provides centralized logging for the list delivery tool.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// parseLevel maps a level name to a slog.Level, defaulting to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a new slog.Logger with the specified level, writing to w.
func NewLogger(w io.Writer, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Open returns a logger writing to the given file path, plus a close
// function. An empty path logs to stderr. The file is opened in append mode
// so concurrent invocations interleave at line granularity rather than
// corrupting each other.
func Open(path string, level string) (*slog.Logger, func() error, error) {
	if path == "" {
		return NewLogger(os.Stderr, level), func() error { return nil }, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return NewLogger(f, level), f.Close, nil
}

// WithDelivery returns a new logger with delivery-specific attributes for
// log correlation across one invocation.
func WithDelivery(logger *slog.Logger, deliveryID string) *slog.Logger {
	return logger.With(
		slog.String("delivery_id", deliveryID),
	)
}
