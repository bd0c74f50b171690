package unit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/roomchat/internal/server"
	"github.com/Tyrowin/roomchat/internal/store"
)

// newWebSocketHandler builds the WebSocket handler with an in-memory relay
// behind it.
func newWebSocketHandler(t *testing.T) http.HandlerFunc {
	t.Helper()

	messages, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("Failed to open message store: %v", err)
	}
	t.Cleanup(func() { _ = messages.Close() })

	hub := server.NewHub()
	ingest := server.NewIngestPipeline(hub, messages, 3)
	history := server.NewHistoryService(messages, 5*time.Second)
	return server.WebSocketHandler(hub, ingest, history)
}

func TestWebSocketHandlerMethodValidation(t *testing.T) {
	handler := newWebSocketHandler(t)

	tests := []struct {
		name           string
		method         string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "POST request should be rejected",
			method:         "POST",
			expectedStatus: http.StatusMethodNotAllowed,
			expectedBody:   "Method not allowed. WebSocket endpoint only accepts GET requests.",
		},
		{
			name:           "PUT request should be rejected",
			method:         "PUT",
			expectedStatus: http.StatusMethodNotAllowed,
			expectedBody:   "Method not allowed. WebSocket endpoint only accepts GET requests.",
		},
		{
			name:           "DELETE request should be rejected",
			method:         "DELETE",
			expectedStatus: http.StatusMethodNotAllowed,
			expectedBody:   "Method not allowed. WebSocket endpoint only accepts GET requests.",
		},
		{
			name:           "PATCH request should be rejected",
			method:         "PATCH",
			expectedStatus: http.StatusMethodNotAllowed,
			expectedBody:   "Method not allowed. WebSocket endpoint only accepts GET requests.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/ws", nil)
			w := httptest.NewRecorder()

			handler(w, req)

			resp := w.Result()
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode != tt.expectedStatus {
				t.Errorf("Expected status code %d, got %d", tt.expectedStatus, resp.StatusCode)
			}

			body := w.Body.String()
			if strings.TrimSpace(body) != tt.expectedBody {
				t.Errorf("Expected body %q, got %q", tt.expectedBody, strings.TrimSpace(body))
			}
		})
	}
}

func TestWebSocketHandlerGETWithoutUpgrade(t *testing.T) {
	handler := newWebSocketHandler(t)

	req := httptest.NewRequest("GET", "/ws", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	resp := w.Result()
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status code %d for invalid WebSocket upgrade, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestWebSocketHandlerContentType(t *testing.T) {
	handler := newWebSocketHandler(t)

	req := httptest.NewRequest("POST", "/ws", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	resp := w.Result()
	defer func() { _ = resp.Body.Close() }()

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/plain") {
		t.Errorf("Expected Content-Type to contain 'text/plain', got %q", contentType)
	}
}

func TestWebSocketHandlerWithValidHeaders(t *testing.T) {
	handler := newWebSocketHandler(t)

	req := httptest.NewRequest("GET", "/ws", nil)

	req.Header.Set("Connection", "upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "x3JJHMbDL1EzLkh9GBhXDw==")
	req.Header.Set("Origin", "http://localhost:8080")

	w := httptest.NewRecorder()

	handler(w, req)

	resp := w.Result()
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusMethodNotAllowed {
		t.Error("Valid WebSocket request should not return Method Not Allowed")
	}
}

func TestStartHub(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("StartHub panicked: %v", r)
		}
	}()

	hub := server.NewHub()
	server.StartHub(hub)
	_ = hub.Shutdown(time.Second)
}
