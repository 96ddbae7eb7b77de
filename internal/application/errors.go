package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnauthorized is returned when the backend refuses an operation for the current role.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrNotAuthenticated is returned before any protected call when no session exists.
	ErrNotAuthenticated = errors.New("application: not authenticated")
	// ErrAuthenticationRejected is returned when the backend rejects the bearer token.
	ErrAuthenticationRejected = errors.New("application: authentication rejected")
	// ErrInvalidCredentials is returned when login fails.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrInvalidCheckInCode is returned when a scanned code does not embed a visitor id.
	ErrInvalidCheckInCode = errors.New("application: invalid check-in code")
	// ErrCodeAlreadyScanned is returned when the same check-in code is scanned twice.
	ErrCodeAlreadyScanned = errors.New("application: check-in code already scanned")
	// ErrNotApproved is returned when check-in is attempted before approval.
	ErrNotApproved = errors.New("application: visitor not approved")
	// ErrNotCheckedIn is returned when check-out is attempted before check-in.
	ErrNotCheckedIn = errors.New("application: visitor not checked in")
	// ErrTransitionNotAllowed is returned when a status change would leave the lifecycle graph.
	ErrTransitionNotAllowed = errors.New("application: transition not allowed")
	// ErrStaleAction is returned when an action targets an item no longer in its view.
	ErrStaleAction = errors.New("application: stale action")
	// ErrActionInFlight is returned while another action on the same item is outstanding.
	ErrActionInFlight = errors.New("application: action already in flight")
	// ErrCallNotPermitted is returned when the join policy refuses a call.
	ErrCallNotPermitted = errors.New("application: call not permitted")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(v.Messages(), "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// Messages returns the recorded messages ordered by field name.
func (v *ValidationError) Messages() []string {
	if v == nil || len(v.FieldErrors) == 0 {
		return nil
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		out = append(out, v.FieldErrors[field])
	}
	return out
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// BusinessError is a rule violation reported by the backend.
type BusinessError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *BusinessError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return fmt.Sprintf("backend rejected request (status %d)", e.Status)
	}
	return e.Message
}

// TransportError wraps a failure to reach the backend or decode its response.
type TransportError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UserMessage returns the text surfaced to the operator for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) && vErr.HasErrors() {
		return strings.Join(vErr.Messages(), "\n")
	}
	var bErr *BusinessError
	if errors.As(err, &bErr) {
		if strings.TrimSpace(bErr.Message) != "" {
			return bErr.Message
		}
		return "The request could not be completed."
	}
	var tErr *TransportError
	if errors.As(err, &tErr) {
		return "Unable to reach the server. Please try again."
	}

	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return "Authentication required."
	case errors.Is(err, ErrAuthenticationRejected):
		return "Your session is no longer valid. Please log in again."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid credentials"
	case errors.Is(err, ErrInvalidCheckInCode):
		return "Invalid QR code format."
	case errors.Is(err, ErrCodeAlreadyScanned):
		return "This QR code has already been scanned."
	case errors.Is(err, ErrNotApproved):
		return "Visitor must be approved before check-in."
	case errors.Is(err, ErrNotCheckedIn):
		return "Visitor must be checked in before check-out."
	case errors.Is(err, ErrTransitionNotAllowed):
		return "This action is not available for the visitor's current status."
	case errors.Is(err, ErrStaleAction):
		return "This item has already been processed. Refresh to see its current status."
	case errors.Is(err, ErrActionInFlight):
		return "This item is already being processed."
	case errors.Is(err, ErrCallNotPermitted):
		return "You can join this call once you have approved the meeting."
	case errors.Is(err, ErrUnauthorized):
		return "You are not allowed to perform this action."
	case errors.Is(err, ErrNotFound):
		return "The requested item was not found."
	}
	return "An unexpected error occurred."
}
