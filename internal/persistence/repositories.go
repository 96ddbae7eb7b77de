package persistence

import "context"

// SessionRepository stores the single client session.
type SessionRepository interface {
	// SaveSession replaces any stored session with record.
	SaveSession(ctx context.Context, record SessionRecord) error
	// CurrentSession returns the stored session or ErrNotFound.
	CurrentSession(ctx context.Context) (SessionRecord, error)
	// DeleteSession removes the stored session. Deleting nothing is not an error.
	DeleteSession(ctx context.Context) error
}
