package http

import (
	"context"
	"log/slog"

	"github.com/example/visitor-desk/internal/logging"
)

type contextKey string

const visitorIDContextKey contextKey = "visitor_id"

// ContextWithVisitorID injects the visitor identifier resolved from the request path.
func ContextWithVisitorID(ctx context.Context, visitorID string) context.Context {
	return context.WithValue(ctx, visitorIDContextKey, visitorID)
}

// VisitorIDFromContext extracts a visitor identifier previously associated with the context.
func VisitorIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(visitorIDContextKey).(string)
	return id, ok && id != ""
}

// ContextWithLogger returns a derived context carrying the request logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext returns the request logger, or nil.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
