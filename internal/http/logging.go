package http

import (
	"context"
	"log/slog"

	"github.com/example/visitor-desk/internal/logging"
)

// handlerLogger prefers the request logger installed by RequestLogger. When the
// handler is mounted without it, the fallback gets the request id attached.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	pairs := []any{"handler", handlerName}
	if logger == nil {
		logger = fallback
		if logger == nil {
			logger = slog.Default()
		}
		if id := logging.RequestIDFromContext(ctx); id != "" {
			pairs = append(pairs, "request_id", id)
		}
	}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	return logger.With(append(pairs, attrs...)...)
}
