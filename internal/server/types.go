// Package server defines the wire-level frame and envelope types exchanged
// with clients, plus utility helpers shared across client and hub logic.
package server

import (
	"encoding/json"
	"log"
	"strings"
)

// Recognized values for the inbound "action" field. Frames without an action
// are treated as chat messages.
const (
	ActionJoinRoom    = "join_room"
	ActionGetHistory  = "get_history"
	ActionChatHistory = "chat_history"
)

// InboundFrame is the structured payload read from a client connection.
// Exactly one shape is expected per frame: a join request (action + room),
// a history request (action), or a chat message (username + message).
type InboundFrame struct {
	Action   string `json:"action,omitempty"`
	Room     string `json:"room,omitempty"`
	Username string `json:"username,omitempty"`
	Message  string `json:"message,omitempty"`
}

// SystemNotice announces room arrivals and departures to members.
type SystemNotice struct {
	System string `json:"system"`
}

// ChatEnvelope is a chat message as delivered to room members and as
// returned in history payloads. The persisted timestamp is not exposed.
type ChatEnvelope struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// HistoryEnvelope carries a room's full ordered history to the requester.
type HistoryEnvelope struct {
	Action  string         `json:"action"`
	History []ChatEnvelope `json:"history"`
}

// ErrorEnvelope reports a malformed frame or a failed operation to the
// originating client only.
type ErrorEnvelope struct {
	Error string `json:"error"`
}

// marshalEnvelope serializes an outbound envelope, logging and returning nil
// on failure. Envelope types contain only strings and slices, so failures
// indicate a programming error rather than bad input.
func marshalEnvelope(v any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("Error encoding outbound envelope: %v", err)
		return nil
	}
	return payload
}

func systemNotice(text string) []byte {
	return marshalEnvelope(SystemNotice{System: text})
}

func errorEnvelope(text string) []byte {
	return marshalEnvelope(ErrorEnvelope{Error: text})
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
