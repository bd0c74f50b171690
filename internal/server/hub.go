// Package server coordinates client registration, room membership, message
// fan-out, and connection cleanup for the chat relay via the Hub type.
package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/metrics"
)

// Hub owns the set of live client connections, the room directory, and the
// per-client room binding. All membership state is mutated only through
// exclusive-access methods so joins, leaves, and broadcast snapshots never
// observe a half-applied transition.
type Hub struct {
	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	bindings   map[*Client]string
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates and initializes a new Hub instance with empty room and
// client tables. The returned Hub is ready to manage WebSocket connections.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		bindings:   make(map[*Client]string),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// GetRegisterChan returns the channel used for registering new clients to the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients from the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// Run starts the hub's main event loop, handling client registration and
// unregistration. This method should be called in a separate goroutine as it
// runs indefinitely.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mutex.Unlock()
			metrics.ConnectedClients.Set(float64(clientCount))
			log.Printf("Client %s registered from %s. Total clients: %d", client.id, client.addr, clientCount)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// Join moves the client into the named room. If the client is already bound
// to a room it is detached from that room first, so a connection is never a
// member of two rooms. The room is created on first join, and both the old
// room's remaining members and the new room's members receive a system
// notice. The full transition happens under one exclusive section.
func (h *Hub) Join(client *Client, roomName string) {
	if client == nil || roomName == "" {
		return
	}

	h.mutex.Lock()

	var departed []*Client
	var departureNotice []byte
	if previous, bound := h.bindings[client]; bound {
		departed = h.detachLocked(client, previous)
		departureNotice = systemNotice("A user has left the room: " + previous)
	}

	members := h.rooms[roomName]
	if members == nil {
		members = make(map[*Client]bool)
		h.rooms[roomName] = members
	}
	members[client] = true
	h.bindings[client] = roomName
	arrival := snapshotMembers(members)
	metrics.ActiveRooms.Set(float64(len(h.rooms)))

	h.mutex.Unlock()

	if len(departed) > 0 {
		h.fanOut(departed, departureNotice)
	}

	log.Printf("Client %s joined room %q", client.id, roomName)
	h.fanOut(arrival, systemNotice("A new user has joined the room: "+roomName))
}

// Leave removes the client from the named room, deleting the room entry when
// its member set becomes empty and notifying the remaining members. Leaving
// a room the client is not in is a no-op, so disconnect cleanup is safe to
// call unconditionally.
func (h *Hub) Leave(client *Client, roomName string) {
	if client == nil || roomName == "" {
		return
	}

	h.mutex.Lock()

	members, exists := h.rooms[roomName]
	if !exists || !members[client] {
		if h.bindings[client] == roomName {
			delete(h.bindings, client)
		}
		h.mutex.Unlock()
		return
	}

	remaining := h.detachLocked(client, roomName)
	if h.bindings[client] == roomName {
		delete(h.bindings, client)
	}
	metrics.ActiveRooms.Set(float64(len(h.rooms)))

	h.mutex.Unlock()

	log.Printf("Client %s left room %q", client.id, roomName)
	if len(remaining) > 0 {
		h.fanOut(remaining, systemNotice("A user has left the room: "+roomName))
	}
}

// RoomOf returns the name of the room the client currently occupies, or the
// empty string when the client is not bound to any room.
func (h *Hub) RoomOf(client *Client) string {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.bindings[client]
}

// Broadcast fans the payload out to every member of the named room. The
// member set is snapshotted at the instant broadcast begins; membership
// changes during the fan-out do not affect connections already snapshotted.
// Broadcasting to an unknown or empty room is a no-op.
func (h *Hub) Broadcast(roomName string, payload []byte) {
	if payload == nil {
		return
	}

	h.mutex.RLock()
	members := snapshotMembers(h.rooms[roomName])
	h.mutex.RUnlock()

	if len(members) == 0 {
		return
	}

	h.fanOut(members, payload)
}

// detachLocked removes the client from the room's member set and deletes the
// room entry if the set becomes empty. It returns a snapshot of the
// remaining members. Callers must hold the write lock.
func (h *Hub) detachLocked(client *Client, roomName string) []*Client {
	members, exists := h.rooms[roomName]
	if !exists {
		return nil
	}

	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, roomName)
		return nil
	}

	return snapshotMembers(members)
}

func snapshotMembers(members map[*Client]bool) []*Client {
	if len(members) == 0 {
		return nil
	}

	snapshot := make([]*Client, 0, len(members))
	for member := range members {
		snapshot = append(snapshot, member)
	}
	return snapshot
}

// fanOut delivers the payload to each member independently and concurrently,
// so one slow or closed connection never blocks delivery to the others. It
// returns once every delivery attempt has completed. Members whose send
// failed are removed from the hub.
func (h *Hub) fanOut(members []*Client, payload []byte) {
	if len(members) == 0 || payload == nil {
		return
	}

	var wg sync.WaitGroup
	failed := make(chan *Client, len(members))

	for _, member := range members {
		wg.Add(1)
		go func(client *Client) {
			defer wg.Done()
			if !h.safeSend(client, payload) {
				metrics.BroadcastFailures.Inc()
				log.Printf("Dropping delivery to client %s: connection closed or send buffer full", client.id)
				failed <- client
			}
		}(member)
	}

	wg.Wait()
	close(failed)

	var clientsToRemove []*Client
	for client := range failed {
		clientsToRemove = append(clientsToRemove, client)
	}
	h.removeFailedClients(clientsToRemove)
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	// Hold the lock during the entire send operation to prevent race conditions
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	// Check if client is still registered and not closed
	_, exists := h.clients[client]
	if !exists || client.closed {
		return false
	}

	// Try to send the message (channel might be closed, so we need to recover from panic)
	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// removeClient unregisters the client, detaching it from its room first so
// the departure notice reaches the remaining members exactly once.
func (h *Hub) removeClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}

	delete(h.clients, client)
	client.closed = true

	var remaining []*Client
	var departureNotice []byte
	if roomName, bound := h.bindings[client]; bound {
		remaining = h.detachLocked(client, roomName)
		delete(h.bindings, client)
		departureNotice = systemNotice("A user has left the room: " + roomName)
	}

	clientCount := len(h.clients)
	metrics.ConnectedClients.Set(float64(clientCount))
	metrics.ActiveRooms.Set(float64(len(h.rooms)))
	h.mutex.Unlock()

	// Close the channel after releasing the lock
	close(client.send)
	log.Printf("Client %s unregistered from %s. Total clients: %d", client.id, client.addr, clientCount)

	if len(remaining) > 0 {
		h.fanOut(remaining, departureNotice)
	}
}

// removeFailedClients drops clients that failed to receive messages. Their
// room membership is cleared silently; the failed delivery has already been
// logged and the transport teardown follows from the closed send channel.
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if _, exists := h.clients[client]; exists {
			delete(h.clients, client)
			client.closed = true
			if roomName, bound := h.bindings[client]; bound {
				h.detachLocked(client, roomName)
				delete(h.bindings, client)
			}
			channelsToClose = append(channelsToClose, client.send)
			log.Printf("Client %s removed due to failed delivery", client.id)
		}
	}
	metrics.ConnectedClients.Set(float64(len(h.clients)))
	metrics.ActiveRooms.Set(float64(len(h.rooms)))
	h.mutex.Unlock()

	// Close channels after releasing the lock
	for _, ch := range channelsToClose {
		close(ch)
	}
}

// ClientCount returns the number of registered client connections.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// RoomCount returns the number of rooms with at least one member.
func (h *Hub) RoomCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms)
}

// RoomMembers returns the number of members currently in the named room.
func (h *Hub) RoomMembers(roomName string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[roomName])
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	// Close all client connections
	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection from %s: %v", client.addr, err)
				}
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	// Signal shutdown
	h.cancel()

	// Wait for Run() to complete
	<-h.done

	// Wait for all client goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
