package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Event is one detected theft: what the scale saw, what was recorded,
// and whether the clip made it to Slack.
type Event struct {
	ID           string    `json:"id"`
	At           time.Time `json:"at"`
	WeightBefore float64   `json:"weight_before_g"`
	WeightAfter  float64   `json:"weight_after_g"`
	ItemsTaken   float64   `json:"items_taken"`
	GifPath      string    `json:"gif_path,omitempty"`
	Posted       bool      `json:"posted"`
}

// DB is the sqlite-backed theft event log.
type DB struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id            TEXT PRIMARY KEY,
	at            DATETIME NOT NULL,
	weight_before REAL NOT NULL,
	weight_after  REAL NOT NULL,
	items_taken   REAL NOT NULL,
	gif_path      TEXT NOT NULL DEFAULT '',
	posted        INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_events_at ON events(at);
`

// Open opens (creating if needed) the event database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Insert saves an event, assigning an id and timestamp when missing.
func (d *DB) Insert(e *Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := d.db.Exec(
		`INSERT INTO events (id, at, weight_before, weight_after, items_taken, gif_path, posted)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.At, e.WeightBefore, e.WeightAfter, e.ItemsTaken, e.GifPath, e.Posted,
	)
	if err != nil {
		return fmt.Errorf("store: insert event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (d *DB) Recent(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.db.Query(
		`SELECT id, at, weight_before, weight_after, items_taken, gif_path, posted
		 FROM events ORDER BY at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.At, &e.WeightBefore, &e.WeightAfter, &e.ItemsTaken, &e.GifPath, &e.Posted); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}
