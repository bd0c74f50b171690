// Package testhelpers provides common utilities and helper functions for testing the RoomChat relay.
//
// This package contains reusable test utilities that are shared across the integration tests.
// It provides functions for creating test servers, making HTTP requests, speaking the relay's
// wire protocol over WebSocket, and asserting response properties to reduce code duplication
// in test files.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// CreateTestServerWithConfig creates a test server with custom timeout configuration.
// It allows specifying custom read, write, and idle timeouts for testing server behavior
// under different timeout conditions.
func CreateTestServerWithConfig(
	handler http.Handler,
	readTimeout, writeTimeout, idleTimeout time.Duration,
) *httptest.Server {
	server := &http.Server{
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	testServer := httptest.NewUnstartedServer(handler)
	testServer.Config = server
	testServer.Start()
	return testServer
}

// AssertStatusCode checks if the HTTP response has the expected status code.
// It fails the test with a descriptive error message if the status codes don't match.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
// It fails the test with a descriptive error message if the content types don't match.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// ConnectWebSocket creates a WebSocket connection to the specified URL.
// It returns the connection or an error if connection fails.
func ConnectWebSocket(url string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	// Set a proper origin header for testing
	headers := http.Header{}
	headers.Set("Origin", "http://localhost:8080")

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// SendChatMessage sends a chat frame with the given username and message body
// over the WebSocket connection.
func SendChatMessage(conn *websocket.Conn, username, message string) error {
	frame := map[string]string{"username": username, "message": message}
	return conn.WriteJSON(frame)
}

// SendJoinRoom sends a join_room action frame for the given room.
func SendJoinRoom(conn *websocket.Conn, room string) error {
	frame := map[string]string{"action": "join_room", "room": room}
	return conn.WriteJSON(frame)
}

// SendHistoryRequest sends a get_history action frame.
func SendHistoryRequest(conn *websocket.Conn) error {
	frame := map[string]string{"action": "get_history"}
	return conn.WriteJSON(frame)
}

// ReceiveMessage reads a JSON message from the WebSocket connection.
// It returns the decoded envelope or an error if reading fails.
func ReceiveMessage(conn *websocket.Conn) (map[string]interface{}, error) {
	var message map[string]interface{}
	err := conn.ReadJSON(&message)
	return message, err
}

// ReceiveMessageWithTimeout reads a JSON message with a read deadline, so a
// test never hangs waiting on an envelope that was never sent.
func ReceiveMessageWithTimeout(conn *websocket.Conn, timeout time.Duration) (map[string]interface{}, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()
	return ReceiveMessage(conn)
}

// SendRawMessage sends a raw byte message over the WebSocket connection.
func SendRawMessage(conn *websocket.Conn, messageType int, data []byte) error {
	return conn.WriteMessage(messageType, data)
}

// ReceiveRawMessage reads a raw message from the WebSocket connection.
func ReceiveRawMessage(conn *websocket.Conn) (int, []byte, error) {
	return conn.ReadMessage()
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// AssertSystemNotice checks that the received envelope is a system notice
// with the expected text.
func AssertSystemNotice(t *testing.T, message map[string]interface{}, expected string) {
	t.Helper()

	notice, ok := message["system"]
	if !ok {
		t.Errorf("Message does not contain 'system' field: %v", message)
		return
	}

	noticeStr, ok := notice.(string)
	if !ok {
		t.Error("System notice is not a string")
		return
	}

	if noticeStr != expected {
		t.Errorf("Expected system notice %q, got %q", expected, noticeStr)
	}
}

// AssertChatMessage checks that the received envelope is a chat message with
// the expected username and body.
func AssertChatMessage(t *testing.T, message map[string]interface{}, username, body string) {
	t.Helper()

	gotUser, ok := message["username"].(string)
	if !ok {
		t.Errorf("Message does not contain a string 'username' field: %v", message)
		return
	}
	gotBody, ok := message["message"].(string)
	if !ok {
		t.Errorf("Message does not contain a string 'message' field: %v", message)
		return
	}

	if gotUser != username || gotBody != body {
		t.Errorf("Expected chat message %q from %q, got %q from %q", body, username, gotBody, gotUser)
	}
}

// AssertErrorEnvelope checks that the received envelope carries the expected
// error text.
func AssertErrorEnvelope(t *testing.T, message map[string]interface{}, expected string) {
	t.Helper()

	errText, ok := message["error"].(string)
	if !ok {
		t.Errorf("Message does not contain a string 'error' field: %v", message)
		return
	}
	if errText != expected {
		t.Errorf("Expected error %q, got %q", expected, errText)
	}
}

// CreateJSONMessage creates a JSON-encoded chat frame with the given
// username and message body.
func CreateJSONMessage(username, message string) ([]byte, error) {
	frame := map[string]string{"username": username, "message": message}
	return json.Marshal(frame)
}
