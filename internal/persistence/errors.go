package persistence

import "errors"

var (
	// ErrNotFound is returned when no session record is stored.
	ErrNotFound = errors.New("persistence: not found")
	// ErrConstraintViolation is returned when a record is missing required data.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
)
