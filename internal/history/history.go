// Package history provides the SQLite-backed sent-history store that makes
// reminder delivery at-most-once.
//
// Identities accumulate for the lifetime of the database: there is no TTL
// and no pruning. This is deliberate — dropping an entry would re-notify a
// user who temporarily removed and restored a deadline. At personal-vault
// scale the growth is negligible; the row count is surfaced via Count for
// observability.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sent_history (
	identity TEXT PRIMARY KEY,
	sent_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sent_history_sent_at ON sent_history(sent_at);
`

// Entry is one recorded delivery.
type Entry struct {
	Identity string    `json:"identity"`
	SentAt   time.Time `json:"sent_at"`
}

// Store defines the sent-history operations. Consumers should depend on this
// interface rather than the concrete *DB type to facilitate testing.
type Store interface {
	Fired(identity string) (bool, error)
	MarkFired(identity string, at time.Time) error
	Count() (int, error)
	Recent(limit int) ([]Entry, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)

// DB wraps a sql.DB with sent-history operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Fired reports whether a delivery was already recorded for identity.
func (db *DB) Fired(identity string) (bool, error) {
	var one int
	err := db.conn.QueryRow(`SELECT 1 FROM sent_history WHERE identity = ?`, identity).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("history: fired: %w", err)
	}
	return true, nil
}

// MarkFired records a successful delivery for identity. Marking an identity
// that is already recorded is a no-op, so callers may safely retry.
func (db *DB) MarkFired(identity string, at time.Time) error {
	_, err := db.conn.Exec(
		`INSERT OR IGNORE INTO sent_history (identity, sent_at) VALUES (?, ?)`,
		identity, at.UTC())
	if err != nil {
		return fmt.Errorf("history: mark fired: %w", err)
	}
	return nil
}

// Count returns the number of recorded deliveries.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM sent_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("history: count: %w", err)
	}
	return n, nil
}

// Recent returns up to limit entries, newest first.
func (db *DB) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(
		`SELECT identity, sent_at FROM sent_history ORDER BY sent_at DESC, identity LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Identity, &e.SentAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
