package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/visitor-desk/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if id := logging.RequestIDFromContext(ctx); id != "" {
		pairs = append(pairs, "request_id", id)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and typed errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return "not_authenticated"
	case errors.Is(err, ErrAuthenticationRejected):
		return "authentication_rejected"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidCheckInCode):
		return "invalid_code"
	case errors.Is(err, ErrCodeAlreadyScanned):
		return "duplicate_scan"
	case errors.Is(err, ErrNotApproved), errors.Is(err, ErrNotCheckedIn), errors.Is(err, ErrTransitionNotAllowed):
		return "transition"
	case errors.Is(err, ErrStaleAction):
		return "stale"
	case errors.Is(err, ErrActionInFlight):
		return "in_flight"
	case errors.Is(err, ErrCallNotPermitted):
		return "call_not_permitted"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}
	var bErr *BusinessError
	if errors.As(err, &bErr) {
		return "business"
	}
	var tErr *TransportError
	if errors.As(err, &tErr) {
		return "transport"
	}

	return "unexpected"
}
