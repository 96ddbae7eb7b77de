package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/visitor-desk/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository using SQLite.
// The table holds at most one row: saving a session replaces the previous one.
type SessionRepository struct {
	pool  *ConnectionPool
	retry RetryConfig
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{pool: pool, retry: DefaultRetryConfig()}
}

// SaveSession replaces the stored session with record.
func (r *SessionRepository) SaveSession(ctx context.Context, record persistence.SessionRecord) error {
	if strings.TrimSpace(record.ID) == "" || strings.TrimSpace(record.UserID) == "" || len(record.SealedToken) == 0 {
		return persistence.ErrConstraintViolation
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	var expiresAt sql.NullString
	if record.ExpiresAt != nil {
		expiresAt = sql.NullString{String: record.ExpiresAt.UTC().Format(time.RFC3339), Valid: true}
	}

	return withRetry(ctx, r.retry, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
				return MapError(err)
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO sessions (id, user_id, username, email, department, role, sealed_token, expires_at, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				record.ID,
				record.UserID,
				record.Username,
				record.Email,
				record.Department,
				record.Role,
				record.SealedToken,
				expiresAt,
				record.CreatedAt.UTC().Format(time.RFC3339Nano),
			)
			return MapError(err)
		})
	})
}

// CurrentSession returns the stored session or persistence.ErrNotFound.
func (r *SessionRepository) CurrentSession(ctx context.Context) (persistence.SessionRecord, error) {
	var (
		record    persistence.SessionRecord
		expiresAt sql.NullString
		createdAt string
	)
	err := r.pool.db.QueryRowContext(ctx, `
		SELECT id, user_id, username, email, department, role, sealed_token, expires_at, created_at
		FROM sessions
		ORDER BY created_at DESC
		LIMIT 1`,
	).Scan(
		&record.ID,
		&record.UserID,
		&record.Username,
		&record.Email,
		&record.Department,
		&record.Role,
		&record.SealedToken,
		&expiresAt,
		&createdAt,
	)
	if err != nil {
		return persistence.SessionRecord{}, MapError(err)
	}

	if record.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return persistence.SessionRecord{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if expiresAt.Valid {
		parsed, err := time.Parse(time.RFC3339, expiresAt.String)
		if err != nil {
			return persistence.SessionRecord{}, fmt.Errorf("failed to parse expires_at: %w", err)
		}
		record.ExpiresAt = &parsed
	}
	return record, nil
}

// DeleteSession removes the stored session.
func (r *SessionRepository) DeleteSession(ctx context.Context) error {
	return withRetry(ctx, r.retry, func() error {
		_, err := r.pool.db.ExecContext(ctx, `DELETE FROM sessions`)
		return MapError(err)
	})
}
