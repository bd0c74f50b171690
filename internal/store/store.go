// Package store persists chat messages to an append-only SQLite log and
// serves ordered per-room history queries.
package store

import (
	"context"
	"time"
)

// Message is a single persisted chat message. Records are immutable once
// written; ID is assigned by the store on insert.
type Message struct {
	ID        int64
	Username  string
	Body      string
	Room      string
	Timestamp time.Time
}

// MessageStore is the persistence interface consumed by the relay.
// Implementations must be safe for concurrent use by independent callers.
type MessageStore interface {
	// InsertMessage durably appends a message record. The message's ID is
	// populated on success.
	InsertMessage(ctx context.Context, msg *Message) error

	// MessagesByRoom returns every message for the named room ordered by
	// timestamp ascending, with insertion order breaking ties.
	MessagesByRoom(ctx context.Context, room string) ([]Message, error)

	// Close releases the underlying store resources.
	Close() error
}
