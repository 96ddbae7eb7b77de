package sqlite

import (
	"context"

	"github.com/example/visitor-desk/internal/persistence"
)

// Storage is the SQLite backed client storage.
type Storage struct {
	pool *ConnectionPool
	*SessionRepository
}

var _ persistence.SessionRepository = (*Storage)(nil)

// Open connects to the database at dsn. Call Migrate before first use.
func Open(dsn string) (*Storage, error) {
	pool, err := NewConnectionPool(DefaultConfig(dsn))
	if err != nil {
		return nil, err
	}
	return &Storage{pool: pool, SessionRepository: NewSessionRepository(pool)}, nil
}

// Close releases the underlying connections.
func (s *Storage) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Close()
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	migrations, err := loadMigrations(migrationFiles)
	if err != nil {
		return err
	}
	return runMigrations(ctx, s.pool, migrations)
}

// Ping checks the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
