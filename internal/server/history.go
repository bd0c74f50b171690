// Package server implements timeout-bounded retrieval of a room's ordered
// message history.
package server

import (
	"context"
	"log"
	"time"

	"github.com/Tyrowin/roomchat/internal/metrics"
	"github.com/Tyrowin/roomchat/internal/store"
)

// HistoryService reads a room's full message history from the store and
// returns it to the requesting client only. Every lookup is bounded by a
// fixed timeout; on expiry the requester receives an error envelope and no
// partial results.
type HistoryService struct {
	messages store.MessageStore
	timeout  time.Duration
}

// NewHistoryService creates a history service reading from the given store.
func NewHistoryService(messages store.MessageStore, timeout time.Duration) *HistoryService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HistoryService{
		messages: messages,
		timeout:  timeout,
	}
}

type historyResult struct {
	records []store.Message
	err     error
}

// Deliver queries the room's history and sends the ordered result to the
// requester. The store call runs in its own goroutine so the caller returns
// promptly when the timeout fires even if the store cannot be aborted.
func (s *HistoryService) Deliver(ctx context.Context, requester *Client, roomName string) {
	queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results := make(chan historyResult, 1)
	go func() {
		records, err := s.messages.MessagesByRoom(queryCtx, roomName)
		results <- historyResult{records: records, err: err}
	}()

	select {
	case result := <-results:
		if result.err != nil {
			log.Printf("Error retrieving history for room %q: %v", roomName, result.err)
			metrics.HistoryRequests.WithLabelValues("error").Inc()
			requester.deliver(errorEnvelope("Could not retrieve chat history"))
			return
		}

		history := make([]ChatEnvelope, 0, len(result.records))
		for _, record := range result.records {
			history = append(history, ChatEnvelope{Username: record.Username, Message: record.Body})
		}

		metrics.HistoryRequests.WithLabelValues("ok").Inc()
		requester.deliver(marshalEnvelope(HistoryEnvelope{Action: ActionChatHistory, History: history}))

	case <-queryCtx.Done():
		log.Printf("History lookup for room %q timed out after %s", roomName, s.timeout)
		metrics.HistoryRequests.WithLabelValues("timeout").Inc()
		requester.deliver(errorEnvelope("Could not retrieve chat history within the timeout"))
	}
}
