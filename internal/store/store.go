// Package store is the persistence boundary for the deep context pipeline:
// screen captures, commitments, action items, email/calendar observations,
// and completed actions, backed by an embedded SQLite database.
//
// SQLite serializes writes itself; callers need no extra locking. All
// timestamps are stored as millisecond epoch integers.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Sentinel errors returned by queries.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidTransition indicates a commitment status change that is not
	// pending -> {completed, dismissed, expired}. Terminal statuses never
	// reverse.
	ErrInvalidTransition = errors.New("store: invalid status transition")
)

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and applies
// migrations. The parent directory is created with restricted permissions.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	// Pragmas in the connection string apply to all pooled connections.
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(path, 0600)

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := userVersion(db)
	if err != nil {
		return err
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS screen_captures (
		  id            INTEGER PRIMARY KEY AUTOINCREMENT,
		  timestamp     INTEGER NOT NULL,
		  app_name      TEXT NOT NULL,
		  window_title  TEXT NOT NULL,
		  text_content  TEXT,
		  analysis_json TEXT,
		  image_hash    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_captures_timestamp
		ON screen_captures(timestamp DESC);

		CREATE TABLE IF NOT EXISTS commitments (
		  id                TEXT PRIMARY KEY,
		  text              TEXT NOT NULL,
		  type              TEXT NOT NULL,
		  recipient         TEXT,
		  deadline          INTEGER,
		  detected_at       INTEGER NOT NULL,
		  completed_at      INTEGER,
		  status            TEXT NOT NULL DEFAULT 'pending',
		  source_capture_id INTEGER,
		  context_json      TEXT,
		  confidence        REAL NOT NULL,
		  synced            INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_commitments_status_detected
		ON commitments(status, detected_at DESC);

		CREATE TABLE IF NOT EXISTS action_items (
		  id                TEXT PRIMARY KEY,
		  text              TEXT NOT NULL,
		  priority          TEXT NOT NULL,
		  source            TEXT NOT NULL,
		  detected_at       INTEGER NOT NULL,
		  completed_at      INTEGER,
		  status            TEXT NOT NULL DEFAULT 'pending',
		  source_capture_id INTEGER,
		  context_json      TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_action_items_detected
		ON action_items(detected_at DESC);

		CREATE TABLE IF NOT EXISTS email_contexts (
		  id                INTEGER PRIMARY KEY AUTOINCREMENT,
		  timestamp         INTEGER NOT NULL,
		  app_name          TEXT NOT NULL,
		  action            TEXT NOT NULL,
		  recipient         TEXT,
		  subject           TEXT,
		  body_preview      TEXT,
		  has_attachment    INTEGER NOT NULL DEFAULT 0,
		  source_capture_id INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_email_contexts_timestamp
		ON email_contexts(timestamp DESC);

		CREATE TABLE IF NOT EXISTS calendar_contexts (
		  id                INTEGER PRIMARY KEY AUTOINCREMENT,
		  timestamp         INTEGER NOT NULL,
		  app_name          TEXT NOT NULL,
		  action            TEXT NOT NULL,
		  event_title       TEXT,
		  event_time        TEXT,
		  participants_json TEXT,
		  source_capture_id INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_calendar_contexts_timestamp
		ON calendar_contexts(timestamp DESC);

		CREATE TABLE IF NOT EXISTS completed_actions (
		  id                    INTEGER PRIMARY KEY AUTOINCREMENT,
		  action_type           TEXT NOT NULL,
		  details_json          TEXT,
		  timestamp             INTEGER NOT NULL,
		  app_name              TEXT,
		  matched_commitment_id TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_completed_actions_timestamp
		ON completed_actions(timestamp DESC);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := setUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

func userVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

func setUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
