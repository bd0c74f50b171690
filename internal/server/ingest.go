// Package server implements the chat message ingest pipeline: validate,
// persist, then broadcast, bounded by a process-wide concurrency limit.
package server

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Tyrowin/roomchat/internal/metrics"
	"github.com/Tyrowin/roomchat/internal/store"
)

// IngestPipeline validates and persists incoming chat messages before
// fanning them out to the sender's room. At most `limit` ingest operations
// run concurrently across the whole process; additional callers block until
// a slot frees. The bound protects the store and the broadcast fan-out from
// unbounded load when many clients send at once.
type IngestPipeline struct {
	hub      *Hub
	messages store.MessageStore
	slots    *semaphore.Weighted
}

// NewIngestPipeline creates an ingest pipeline writing to the given store
// with the given process-wide concurrency limit.
func NewIngestPipeline(hub *Hub, messages store.MessageStore, limit int) *IngestPipeline {
	if limit <= 0 {
		limit = 3
	}
	return &IngestPipeline{
		hub:      hub,
		messages: messages,
		slots:    semaphore.NewWeighted(int64(limit)),
	}
}

// Process handles one chat frame from the client. A frame missing the
// username or message body is dropped without persistence, broadcast, or an
// error reply. On success the message is persisted with the current UTC
// timestamp and then broadcast to the room. A store write failure is logged
// and reported to the sender only; the message is not broadcast, so every
// delivered chat message has a persisted record.
func (p *IngestPipeline) Process(ctx context.Context, sender *Client, roomName string, frame InboundFrame) {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		log.Printf("Ingest slot acquisition aborted for %s: %v", sender.addr, err)
		return
	}
	defer p.slots.Release(1)

	metrics.IngestInFlight.Inc()
	defer metrics.IngestInFlight.Dec()

	// Deliberately lenient: incomplete chat frames are ignored without a reply.
	if frame.Username == "" || frame.Message == "" {
		return
	}

	log.Printf("Received message from %s in %q (%s): %s", frame.Username, roomName, sender.addr, frame.Message)

	record := store.Message{
		Username:  frame.Username,
		Body:      frame.Message,
		Room:      roomName,
		Timestamp: time.Now().UTC(),
	}
	if err := p.messages.InsertMessage(ctx, &record); err != nil {
		log.Printf("Error persisting message from %s in %q: %v", frame.Username, roomName, err)
		sender.deliver(errorEnvelope("Could not store chat message"))
		return
	}

	payload := marshalEnvelope(ChatEnvelope{Username: frame.Username, Message: frame.Message})
	p.hub.Broadcast(roomName, payload)
	metrics.MessagesIngested.Inc()
}
