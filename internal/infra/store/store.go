// Package store provides SQLite-based persistent storage for Gearfall.
// Uses WAL mode for concurrent reads and crash-safe writes. All mutable
// engine state lives here — nothing is held in process memory between
// scheduler invocations.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// Store wraps a SQLite connection with WAL mode and migrations.
type Store struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer; a one-connection pool makes the relative
	// numeric updates below atomic with respect to each other.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close cleanly shuts down the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	migrations := []string{
		// Per-player task queues. The body column carries the full queue
		// document; running/version are mirrored out for the scheduler's
		// scan and for cheap conflict checks.
		`CREATE TABLE IF NOT EXISTS task_queues (
			player_id  TEXT PRIMARY KEY,
			running    BOOLEAN NOT NULL DEFAULT 0,
			version    INTEGER NOT NULL DEFAULT 0,
			checksum   INTEGER NOT NULL DEFAULT 0,
			body       TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_queues_running ON task_queues(running)`,

		// Character records. Numeric reward columns are updated with
		// relative adds; skills/resources/specialization live in body and
		// are merged transactionally.
		`CREATE TABLE IF NOT EXISTS characters (
			user_id             TEXT PRIMARY KEY,
			name                TEXT NOT NULL DEFAULT '',
			level               INTEGER NOT NULL DEFAULT 1,
			experience          INTEGER NOT NULL DEFAULT 0,
			currency            INTEGER NOT NULL DEFAULT 0,
			activity_type       TEXT,
			activity_started_at INTEGER,
			last_active_at      INTEGER NOT NULL,
			body                TEXT NOT NULL
		)`,

		// Live client connections, with the player index used for
		// notification fan-out.
		`CREATE TABLE IF NOT EXISTS connections (
			connection_id  TEXT PRIMARY KEY,
			player_id      TEXT NOT NULL,
			connected_at   INTEGER NOT NULL,
			last_ping      INTEGER NOT NULL,
			last_heartbeat INTEGER NOT NULL,
			queue_version  INTEGER NOT NULL DEFAULT 0,
			healthy        BOOLEAN NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_connections_player ON connections(player_id)`,
		`CREATE INDEX IF NOT EXISTS idx_connections_heartbeat ON connections(last_heartbeat)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullableUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func unixOrZero(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.Unix(n.Int64, 0)
}
