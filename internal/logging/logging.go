// Package logging provides context-aware logging utilities.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// OperationIDKey is the context key for the operation ID.
type OperationIDKey struct{}

// Setup installs the default slog logger.
// format is "text" or "json"; level is debug, info, warn or error.
func Setup(level, format string, w io.Writer) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger, nil
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	var lvl slog.Level
	if level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", level)
	}
	return lvl, nil
}

// WithOperationID returns a context carrying a fresh operation ID.
func WithOperationID(ctx context.Context) context.Context {
	return context.WithValue(ctx, OperationIDKey{}, uuid.New().String())
}

// GetOperationID returns the operation ID from the context, or empty string if not found.
func GetOperationID(ctx context.Context) string {
	if id, ok := ctx.Value(OperationIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Logger returns a logger with the operation_id from the context.
func Logger(ctx context.Context) *slog.Logger {
	operationID := GetOperationID(ctx)
	if operationID != "" {
		return slog.Default().With("operation_id", operationID)
	}
	return slog.Default()
}
