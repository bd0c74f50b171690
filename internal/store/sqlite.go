package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	username   TEXT NOT NULL,
	body       TEXT NOT NULL,
	room       TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_room_created_at
	ON messages (room, created_at);
`

// SQLiteStore is a MessageStore backed by a local SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) the SQLite message log at the
// given path and ensures the schema exists. Pass ":memory:" for an
// in-process ephemeral store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	dsn := path
	if path != ":memory:" {
		cleanPath := filepath.Clean(path)
		if dir := filepath.Dir(cleanPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		dsn = cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// InsertMessage appends a message record to the log.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *Message) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (username, body, room, created_at)
		VALUES (?, ?, ?, ?)
	`, msg.Username, msg.Body, msg.Room, msg.Timestamp.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted message id: %w", err)
	}
	msg.ID = id

	return nil
}

// MessagesByRoom returns the room's full message history ordered by
// timestamp ascending; the autoincrement id breaks timestamp ties so the
// ordering matches insertion order.
func (s *SQLiteStore) MessagesByRoom(ctx context.Context, room string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, body, room, created_at
		FROM messages
		WHERE room = ?
		ORDER BY created_at ASC, id ASC
	`, room)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []Message
	for rows.Next() {
		var msg Message
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.Username, &msg.Body, &msg.Room, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		msg.Timestamp = fromMillis(createdAt)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	return messages, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
