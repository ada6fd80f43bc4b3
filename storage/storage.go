// Package storage persists the timetable, the bot's conversation state,
// reminders and user data in a single SQLite file. All tables live in one
// store; the schema is created idempotently on open and a shared instance
// per path is reused across components.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

type Store struct {
	db   *sql.DB
	path string
}

var (
	sharedMu sync.Mutex
	shared   = map[string]*Store{}
)

// Open opens (or creates) the store at path and ensures the schema.
// Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Shared returns the process-wide store for path, opening it on first use.
func Shared(path string) (*Store, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if s, ok := shared[path]; ok {
		return s, nil
	}
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	shared[path] = s
	return s, nil
}

// Exists reports whether a store file is already present at path.
func Exists(path string) bool {
	if path == ":memory:" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func (s *Store) Close() error {
	sharedMu.Lock()
	delete(shared, s.path)
	sharedMu.Unlock()
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	for name, query := range map[string]string{
		"stations": `
CREATE TABLE IF NOT EXISTS stations (
    id TEXT PRIMARY KEY,
    name_ua TEXT NOT NULL,
    name_en TEXT NOT NULL,
    line TEXT NOT NULL,
    station_order INTEGER NOT NULL,
    transfer_to TEXT
);`,
		"schedules": `
CREATE TABLE IF NOT EXISTS schedules (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    station_id TEXT NOT NULL,
    direction_station_id TEXT NOT NULL,
    day_type TEXT NOT NULL,
    hour INTEGER NOT NULL,
    minutes INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_schedules_station
    ON schedules (station_id, direction_station_id, day_type);
CREATE INDEX IF NOT EXISTS idx_schedules_time
    ON schedules (day_type, hour, minutes);`,
		"fsm_state": `
CREATE TABLE IF NOT EXISTS fsm_state (
    chat_id INTEGER NOT NULL,
    user_id INTEGER NOT NULL,
    destiny TEXT NOT NULL,
    state TEXT,
    data TEXT,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (chat_id, user_id, destiny)
);`,
		"reminders": `
CREATE TABLE IF NOT EXISTS reminders (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    route_key TEXT,
    station_id TEXT,
    remind_at TIMESTAMP NOT NULL,
    lang TEXT DEFAULT 'ua',
    active INTEGER DEFAULT 1,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reminders_user_active
    ON reminders (user_id, active);
CREATE INDEX IF NOT EXISTS idx_reminders_time
    ON reminders (remind_at);`,
		"users": `
CREATE TABLE IF NOT EXISTS users (
    user_id INTEGER PRIMARY KEY,
    first_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    interaction_count INTEGER DEFAULT 1
);`,
		"interactions": `
CREATE TABLE IF NOT EXISTS interactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    feature TEXT NOT NULL,
    timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_interactions_user ON interactions (user_id);
CREATE INDEX IF NOT EXISTS idx_interactions_timestamp ON interactions (timestamp);`,
	} {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("creating %s table: %w", name, err)
		}
	}

	if err := s.ensureAnalyticsSchema(); err != nil {
		return err
	}

	return s.migrateUserLanguage()
}

// One-time migration: older stores predate the language column.
func (s *Store) migrateUserLanguage() error {
	rows, err := s.db.Query(`PRAGMA table_info(users)`)
	if err != nil {
		return fmt.Errorf("reading users schema: %w", err)
	}
	defer rows.Close()

	hasLanguage := false
	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("scanning users schema: %w", err)
		}
		if name == "language" {
			hasLanguage = true
		}
	}
	if hasLanguage {
		return nil
	}
	if _, err := s.db.Exec(`ALTER TABLE users ADD COLUMN language TEXT DEFAULT 'ua'`); err != nil {
		return fmt.Errorf("adding users.language: %w", err)
	}
	return nil
}
