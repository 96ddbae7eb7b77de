package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"time"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration is one {version}_{description}.sql file.
type Migration struct {
	Version     string
	Description string
	SQL         string
}

var migrationFilePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

// loadMigrations reads the embedded migrations ordered by version.
func loadMigrations(files fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(files, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	seen := make(map[string]string, len(entries))
	migrations := make([]Migration, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := migrationFilePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			return nil, fmt.Errorf("invalid migration file name %q", entry.Name())
		}
		if other, dup := seen[match[1]]; dup {
			return nil, fmt.Errorf("duplicate migration version %s in %s and %s", match[1], other, entry.Name())
		}
		seen[match[1]] = entry.Name()

		body, err := fs.ReadFile(files, "migrations/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{Version: match[1], Description: match[2], SQL: string(body)})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

// runMigrations applies every migration not yet recorded in schema_migrations.
// Each migration runs in its own transaction together with its version row.
func runMigrations(ctx context.Context, pool *ConnectionPool, migrations []Migration) error {
	const versionTable = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			execution_time_ms INTEGER
		)`
	if _, err := pool.db.ExecContext(ctx, versionTable); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, migration := range migrations {
		var exists int
		err := pool.db.QueryRowContext(ctx, `SELECT 1 FROM schema_migrations WHERE version = ?`, migration.Version).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", migration.Version, err)
		}

		started := time.Now()
		err = pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, applied_at, execution_time_ms) VALUES (?, ?, ?)`,
				migration.Version,
				time.Now().UTC().Format(time.RFC3339),
				time.Since(started).Milliseconds(),
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s_%s: %w", migration.Version, migration.Description, err)
		}
	}
	return nil
}
