package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Tyrowin/roomchat/internal/store"
)

// stubStore is a controllable MessageStore for pipeline tests.
type stubStore struct {
	mu       sync.Mutex
	inserted []store.Message
	insertFn func(ctx context.Context, msg *store.Message) error
	queryFn  func(ctx context.Context, room string) ([]store.Message, error)
}

func (s *stubStore) InsertMessage(ctx context.Context, msg *store.Message) error {
	if s.insertFn != nil {
		if err := s.insertFn(ctx, msg); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = int64(len(s.inserted) + 1)
	s.inserted = append(s.inserted, *msg)
	return nil
}

func (s *stubStore) MessagesByRoom(ctx context.Context, room string) ([]store.Message, error) {
	if s.queryFn != nil {
		return s.queryFn(ctx, room)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []store.Message
	for _, msg := range s.inserted {
		if msg.Room == room {
			records = append(records, msg)
		}
	}
	return records, nil
}

func (s *stubStore) Close() error { return nil }

func (s *stubStore) insertedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inserted)
}

// TestIngestDropsIncompleteFrames verifies that a chat frame missing the
// username or the message body is dropped: nothing persisted, nothing
// broadcast, and no error reply.
func TestIngestDropsIncompleteFrames(t *testing.T) {
	hub := NewHub()
	messages := &stubStore{}
	pipeline := NewIngestPipeline(hub, messages, 3)

	sender := registerTestClient(t, hub)
	peer := registerTestClient(t, hub)
	hub.Join(sender, "lobby")
	hub.Join(peer, "lobby")
	drainPayloads(sender)
	drainPayloads(peer)

	frames := []InboundFrame{
		{Username: "alice"},
		{Message: "no name"},
		{},
	}
	for _, frame := range frames {
		pipeline.Process(context.Background(), sender, "lobby", frame)
	}

	if messages.insertedCount() != 0 {
		t.Errorf("Expected no persisted records, got %d", messages.insertedCount())
	}
	if payloads := drainPayloads(sender); len(payloads) != 0 {
		t.Errorf("Expected no reply to sender, got %d payloads", len(payloads))
	}
	if payloads := drainPayloads(peer); len(payloads) != 0 {
		t.Errorf("Expected no broadcast, got %d payloads", len(payloads))
	}
}

// TestIngestPersistsThenBroadcasts verifies the success path: the message is
// persisted with a UTC timestamp and the chat envelope reaches every member
// of the room, including the sender.
func TestIngestPersistsThenBroadcasts(t *testing.T) {
	hub := NewHub()
	messages := &stubStore{}
	pipeline := NewIngestPipeline(hub, messages, 3)

	sender := registerTestClient(t, hub)
	peer := registerTestClient(t, hub)
	hub.Join(sender, "lobby")
	hub.Join(peer, "lobby")
	drainPayloads(sender)
	drainPayloads(peer)

	pipeline.Process(context.Background(), sender, "lobby", InboundFrame{Username: "alice", Message: "hi"})

	if messages.insertedCount() != 1 {
		t.Fatalf("Expected 1 persisted record, got %d", messages.insertedCount())
	}
	record := messages.inserted[0]
	if record.Username != "alice" || record.Body != "hi" || record.Room != "lobby" {
		t.Errorf("Unexpected persisted record: %+v", record)
	}
	if record.Timestamp.IsZero() || record.Timestamp.Location() != time.UTC {
		t.Errorf("Expected a UTC timestamp, got %v", record.Timestamp)
	}

	for _, member := range []*Client{sender, peer} {
		payloads := drainPayloads(member)
		if len(payloads) != 1 {
			t.Fatalf("Expected 1 broadcast payload, got %d", len(payloads))
		}
		var envelope ChatEnvelope
		if err := json.Unmarshal(payloads[0], &envelope); err != nil {
			t.Fatalf("Failed to decode chat envelope: %v", err)
		}
		if envelope.Username != "alice" || envelope.Message != "hi" {
			t.Errorf("Unexpected chat envelope: %+v", envelope)
		}
	}
}

// TestIngestStoreFailureRepliesToSenderOnly verifies the store-failure
// policy: the error is reported to the originating client and the message is
// not broadcast.
func TestIngestStoreFailureRepliesToSenderOnly(t *testing.T) {
	hub := NewHub()
	messages := &stubStore{
		insertFn: func(context.Context, *store.Message) error {
			return errors.New("disk full")
		},
	}
	pipeline := NewIngestPipeline(hub, messages, 3)

	sender := registerTestClient(t, hub)
	peer := registerTestClient(t, hub)
	hub.Join(sender, "lobby")
	hub.Join(peer, "lobby")
	drainPayloads(sender)
	drainPayloads(peer)

	pipeline.Process(context.Background(), sender, "lobby", InboundFrame{Username: "alice", Message: "hi"})

	payloads := drainPayloads(sender)
	if len(payloads) != 1 {
		t.Fatalf("Expected exactly one error reply, got %d payloads", len(payloads))
	}
	var reply ErrorEnvelope
	if err := json.Unmarshal(payloads[0], &reply); err != nil || reply.Error == "" {
		t.Errorf("Expected an error envelope, got %s", payloads[0])
	}
	if peerPayloads := drainPayloads(peer); len(peerPayloads) != 0 {
		t.Errorf("Expected no broadcast on store failure, got %d payloads", len(peerPayloads))
	}
}

// TestIngestConcurrencyLimitBlocks verifies the process-wide bound: with a
// limit of 3, a 4th concurrent ingest call must block until one of the first
// 3 releases its slot.
func TestIngestConcurrencyLimitBlocks(t *testing.T) {
	hub := NewHub()

	started := make(chan struct{}, 4)
	release := make(chan struct{})
	messages := &stubStore{
		insertFn: func(context.Context, *store.Message) error {
			started <- struct{}{}
			<-release
			return nil
		},
	}
	pipeline := NewIngestPipeline(hub, messages, 3)

	sender := registerTestClient(t, hub)
	hub.Join(sender, "lobby")
	drainPayloads(sender)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pipeline.Process(context.Background(), sender, "lobby", InboundFrame{Username: "alice", Message: "hi"})
		}()
	}

	// Exactly 3 pipelines may reach the store.
	for i := 0; i < 3; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatalf("Pipeline %d never reached the store", i+1)
		}
	}
	select {
	case <-started:
		t.Fatal("4th ingest call ran before a slot was released")
	case <-time.After(100 * time.Millisecond):
	}

	// Releasing one slot unblocks the 4th call.
	release <- struct{}{}
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("4th ingest call never acquired the freed slot")
	}

	close(release)
	wg.Wait()
	drainPayloads(sender)
}
