package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/visitor-desk/internal/application"
)

var (
	errBadRequestBody = errors.New("Invalid request body.")
	errMissingCode    = errors.New("Please scan a check-in code.")
	errInvalidVisitor = errors.New("Invalid visitor id.")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps an application error to a status and writes the
// operator facing message with the error kind as the code.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	status := serviceErrorStatus(err)
	kind := application.ErrorKind(err)
	logger := r.loggerFor(ctx)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "service call failed", "status", status, "error", err, "error_kind", kind)
	} else {
		logger.WarnContext(ctx, "service call refused", "status", status, "error", err, "error_kind", kind)
	}

	resp := errorResponse{ErrorCode: kind, Message: application.UserMessage(err)}
	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		resp.Errors = vErr.FieldErrors
	}
	r.writeJSON(ctx, w, status, resp)
}

func serviceErrorStatus(err error) int {
	switch {
	case errors.Is(err, application.ErrInvalidCheckInCode):
		return http.StatusBadRequest
	case errors.Is(err, application.ErrNotAuthenticated), errors.Is(err, application.ErrAuthenticationRejected):
		return http.StatusUnauthorized
	case errors.Is(err, application.ErrUnauthorized), errors.Is(err, application.ErrCallNotPermitted):
		return http.StatusForbidden
	case errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, application.ErrCodeAlreadyScanned),
		errors.Is(err, application.ErrActionInFlight),
		errors.Is(err, application.ErrStaleAction),
		errors.Is(err, application.ErrNotApproved),
		errors.Is(err, application.ErrNotCheckedIn),
		errors.Is(err, application.ErrTransitionNotAllowed):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusUnprocessableEntity
	}
	var bErr *application.BusinessError
	if errors.As(err, &bErr) {
		return http.StatusUnprocessableEntity
	}
	var tErr *application.TransportError
	if errors.As(err, &tErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "The request is not valid."
	case http.StatusNotFound:
		return "The requested item was not found."
	case http.StatusMethodNotAllowed:
		return "Method not allowed."
	case http.StatusTooManyRequests:
		return "Too many requests."
	default:
		return "An unexpected error occurred."
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
