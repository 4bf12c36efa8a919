// Package ctxlog threads a slog.Logger through context.Context, so library
// code deep in the loader or scheduler can log without carrying a logger
// parameter everywhere.
package ctxlog

import (
	"context"
	"log/slog"
)

// ctxKey is unexported so no other package can collide with our value.
type ctxKey struct{}

// WithLogger returns a child context carrying the logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored in the context, falling back to
// the process default so callers never receive nil.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
