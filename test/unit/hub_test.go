// Package unit contains unit tests for individual components of the RoomChat relay.
//
// These tests focus on testing specific functions and methods in isolation,
// using mocks and stubs where necessary to avoid dependencies on external systems.
// Unit tests ensure that each component behaves correctly under various conditions.
package unit

import (
	"testing"
	"time"

	"github.com/Tyrowin/roomchat/internal/server"
)

// TestNewHub tests the hub creation function.
// It verifies that NewHub returns a properly initialized Hub
// with all necessary channels and data structures.
func TestNewHub(t *testing.T) {
	hub := server.NewHub()

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}

	if hub.ClientCount() != 0 {
		t.Errorf("Expected new hub to have no clients, got %d", hub.ClientCount())
	}
	if hub.RoomCount() != 0 {
		t.Errorf("Expected new hub to have no rooms, got %d", hub.RoomCount())
	}
}

// TestHubChannels tests that all hub channels are properly initialized.
// It verifies that the register and unregister channels are not nil and
// accessible through their getter methods.
func TestHubChannels(t *testing.T) {
	hub := server.NewHub()

	regChan := hub.GetRegisterChan()
	unregChan := hub.GetUnregisterChan()

	if regChan == nil {
		t.Error("Register channel is nil")
	}
	if unregChan == nil {
		t.Error("Unregister channel is nil")
	}
}

// TestHubRunStartsWithoutPanic tests that the hub's Run method starts without panicking.
// It verifies that the hub can be started in a goroutine and runs successfully
// for a short period without encountering runtime errors.
func TestHubRunStartsWithoutPanic(t *testing.T) {
	hub := server.NewHub()

	done := make(chan bool, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("Hub.Run() panicked: %v", r)
			}
			done <- true
		}()
		go hub.Run()
		time.Sleep(10 * time.Millisecond)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Error("Hub.Run() test timed out")
	}
}

// TestHubBroadcastToEmptyRoom verifies that broadcasting to a room with no
// members is a safe no-op.
func TestHubBroadcastToEmptyRoom(t *testing.T) {
	hub := server.NewHub()

	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Broadcast to empty room panicked: %v", r)
		}
	}()

	hub.Broadcast("nobody-home", []byte(`{"system":"test broadcast"}`))

	if hub.RoomCount() != 0 {
		t.Errorf("Expected broadcast not to create rooms, got %d", hub.RoomCount())
	}
}

// TestNewClient tests the client creation function.
// It verifies that NewClient returns a properly initialized Client
// with all necessary fields and channels set up correctly.
func TestNewClient(t *testing.T) {
	hub := server.NewHub()

	client := server.NewClient(nil, hub, nil, nil, "127.0.0.1:12345")

	if client == nil {
		t.Fatal("NewClient() returned nil")
	}

	if client.ID() == "" {
		t.Error("Client id is empty")
	}

	sendChan := client.GetSendChan()
	if sendChan == nil {
		t.Error("Client send channel is nil")
	}
}

// TestClientSendChannel tests the client's send channel functionality.
// It verifies that the client's send channel is properly initialized
// and accessible through the GetSendChan method.
func TestClientSendChannel(t *testing.T) {
	hub := server.NewHub()
	client := server.NewClient(nil, hub, nil, nil, "127.0.0.1:12345")

	sendChan := client.GetSendChan()

	select {
	case <-sendChan:
		t.Error("Expected empty send channel but received a message")
	case <-time.After(10 * time.Millisecond):
	}
}

// TestConcurrentHubOperations tests that the hub handles concurrent operations safely.
// It verifies that multiple goroutines can broadcast simultaneously
// without causing race conditions or panics.
func TestConcurrentHubOperations(t *testing.T) {
	hub := server.NewHub()
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	done := make(chan bool, 10)

	for i := 0; i < 10; i++ {
		go func(id int) {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Goroutine %d panicked: %v", id, r)
				}
				done <- true
			}()

			hub.Broadcast("lobby", []byte(`{"system":"concurrent message"}`))
		}(i)
	}

	for i := 0; i < 10; i++ {
		select {
		case <-done:
		case <-time.After(200 * time.Millisecond):
			t.Error("Concurrent operations test timed out")
			return
		}
	}
}
