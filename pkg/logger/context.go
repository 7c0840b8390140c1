package logger

import (
	"context"
	"log/slog"
)

type attemptIDKey struct{}

// WithAttemptID stores a sign-in attempt id in ctx.
func WithAttemptID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, attemptIDKey{}, id)
}

// AttemptIDFromContext returns the attempt id stored in ctx, if any.
func AttemptIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(attemptIDKey{}).(string)
	return id, ok && id != ""
}

// AttemptIDExtractor adds "attempt_id" to records logged with a context carrying one.
func AttemptIDExtractor(ctx context.Context) (slog.Attr, bool) {
	id, ok := AttemptIDFromContext(ctx)
	if !ok {
		return slog.Attr{}, false
	}
	return slog.String("attempt_id", id), true
}
