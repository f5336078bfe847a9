package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	name       TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS pairs (
	event  TEXT NOT NULL REFERENCES events(name) ON DELETE CASCADE,
	giver  TEXT NOT NULL,
	giftee TEXT NOT NULL,
	PRIMARY KEY (event, giver)
);
`

// SQLiteStore keeps pairings in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("state: sqlite path is required")
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", strings.ReplaceAll(filepath.Clean(path), " ", "%20"))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("state: opening sqlite database failed: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("state: connecting to sqlite database failed: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("state: applying sqlite schema failed: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Create inserts the event and its pairs in one transaction.
func (s *SQLiteStore) Create(ctx context.Context, event string, pairs map[string]string) (err error) {
	if err := validateEvent(event); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("state: sqlite begin failed: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE name = ?`, event).Scan(&count); err != nil {
		return fmt.Errorf("state: sqlite lookup failed: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", ErrEventExists, event)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO events (name, created_at) VALUES (?, ?)`, event, time.Now().UTC().UnixMilli()); err != nil {
		return fmt.Errorf("state: sqlite insert event failed: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO pairs (event, giver, giftee) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("state: sqlite prepare failed: %w", err)
	}
	defer stmt.Close()
	for giver, giftee := range pairs {
		if _, err := stmt.ExecContext(ctx, event, giver, giftee); err != nil {
			return fmt.Errorf("state: sqlite insert pair failed: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("state: sqlite commit failed: %w", err)
	}
	return nil
}

// Load reads the pairs of event.
func (s *SQLiteStore) Load(ctx context.Context, event string) (map[string]string, error) {
	ok, err := s.Exists(ctx, event)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, event)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT giver, giftee FROM pairs WHERE event = ?`, event)
	if err != nil {
		return nil, fmt.Errorf("state: sqlite query failed: %w", err)
	}
	defer rows.Close()

	pairs := map[string]string{}
	for rows.Next() {
		var giver, giftee string
		if err := rows.Scan(&giver, &giftee); err != nil {
			return nil, fmt.Errorf("state: scanning sqlite row failed: %w", err)
		}
		pairs[giver] = giftee
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("state: iterating sqlite rows failed: %w", err)
	}
	return pairs, nil
}

// Exists reports whether event has been created.
func (s *SQLiteStore) Exists(ctx context.Context, event string) (bool, error) {
	if err := validateEvent(event); err != nil {
		return false, err
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE name = ?`, event).Scan(&count); err != nil {
		return false, fmt.Errorf("state: sqlite lookup failed: %w", err)
	}
	return count > 0, nil
}

// List returns every event name, sorted.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM events ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("state: sqlite query failed: %w", err)
	}
	defer rows.Close()

	events := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("state: scanning sqlite row failed: %w", err)
		}
		events = append(events, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("state: iterating sqlite rows failed: %w", err)
	}
	return events, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
