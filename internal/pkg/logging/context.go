package logging

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// WithLogger returns a copy of ctx carrying l.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// LoggerFrom returns the logger stored in ctx, if any.
func LoggerFrom(ctx context.Context) (*slog.Logger, bool) {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	return l, ok
}

// FromContext extracts the per-request logger from ctx.
// Falls back to the default logger if none is set.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := LoggerFrom(ctx); ok {
		return l
	}
	return slog.Default()
}
