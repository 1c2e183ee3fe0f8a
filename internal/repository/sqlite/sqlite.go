// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// SQLite is the default store: an embedded database living in a single file
// next to the binary, which fits the dataset sizes this registry targets.
// The modernc.org/sqlite driver is a pure-Go translation of SQLite — no CGo,
// no C compiler, cross-compiles everywhere Go does.
//
// Deployments that want a database server instead set DB_DRIVER=postgres and
// get the adapter in internal/repository/postgres behind the same
// repository.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sakif/broken-weave/internal/apperror"

	// Side-effect import: registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/registry.db" → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// An in-memory database exists per connection; with the default pool
	// every new connection would see an empty schema.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	// Ping forces an immediate connection so a bad path or permissions
	// problem surfaces at startup, not on the first request.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode allows concurrent reads while a write is in progress —
	// needed for a web server where multiple requests hit the database.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies store connectivity. Backs the /api/health probe.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps it safe to
// run on every startup against an existing database.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_admin      INTEGER NOT NULL DEFAULT 0,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS missing_persons (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			name                TEXT NOT NULL,
			dob                 TEXT,
			category            TEXT NOT NULL,
			last_known_location TEXT NOT NULL,
			contact_info        TEXT NOT NULL,
			description         TEXT,
			image_url           TEXT,
			status              TEXT NOT NULL DEFAULT 'missing'
			                    CHECK (status IN ('missing', 'found')),
			reported_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_missing_persons_reported_at
			ON missing_persons(reported_at);
		CREATE INDEX IF NOT EXISTS idx_missing_persons_status
			ON missing_persons(status);
	`)
	if err != nil {
		return fmt.Errorf("creating missing_persons table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS volunteers (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL,
			phone         TEXT,
			skills        TEXT NOT NULL,
			availability  TEXT NOT NULL,
			message       TEXT,
			registered_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_volunteers_registered_at
			ON volunteers(registered_at);
	`)
	if err != nil {
		return fmt.Errorf("creating volunteers table: %w", err)
	}

	return nil
}

// nullable converts "" to NULL for optional text columns.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isUniqueViolation reports whether err is the driver's unique-constraint
// error. Used to translate duplicate registrations into a domain conflict
// even when two requests race past the existence pre-check.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// conflictOr maps a unique violation to apperror.Conflict and anything else
// to a wrapped internal error.
func conflictOr(err error, conflictMsg, wrapMsg string) error {
	if isUniqueViolation(err) {
		return apperror.Conflict(conflictMsg)
	}
	return fmt.Errorf("%s: %w", wrapMsg, err)
}
