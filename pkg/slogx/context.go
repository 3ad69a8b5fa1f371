package slogx

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// WithContext attaches logger to ctx.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger carried by ctx, or slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

// WithOperation tags the context logger with the session operation in flight
// and the session generation it was issued under.
func WithOperation(ctx context.Context, op string, generation uint64) context.Context {
	l := FromContext(ctx)
	return WithContext(ctx, l.With("op", op, "generation", generation))
}
