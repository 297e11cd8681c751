package websocket

import (
	"sync"
)

// Hub is the room-membership table. All mutation and fan-out happens under one
// lock, so a frame is never queued on a client the hub has already closed.
type Hub struct {
	mu sync.RWMutex

	// clients maps client ID to client
	clients map[string]*Client

	// rooms maps room name to the clients joined to it
	rooms map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
}

// Unregister removes the client from every room and closes its Send channel.
// It reports false when the client was not registered.
func (h *Hub) Unregister(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return false
	}
	for _, room := range client.Rooms() {
		h.leaveLocked(client, room)
	}
	delete(h.clients, client.ID)
	close(client.Send)
	return true
}

func (h *Hub) Join(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[client] = struct{}{}
	client.addRoom(room)
}

func (h *Hub) Leave(client *Client, room string) {
	h.mu.Lock()
	h.leaveLocked(client, room)
	h.mu.Unlock()
}

func (h *Hub) leaveLocked(client *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	client.removeRoom(room)
}

// BroadcastRoom queues payload on every member of room except the given client
// (nil excludes nobody) and returns the number of recipients.
func (h *Hub) BroadcastRoom(room string, payload []byte, except *Client) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for c := range h.rooms[room] {
		if c == except {
			continue
		}
		if c.SendMessage(payload) {
			n++
		}
	}
	return n
}

func (h *Hub) BroadcastAll(payload []byte, except *Client) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, c := range h.clients {
		if c == except {
			continue
		}
		if c.SendMessage(payload) {
			n++
		}
	}
	return n
}

// SendTo queues payload on one client by id.
func (h *Hub) SendTo(clientID string, payload []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[clientID]
	if !ok {
		return false
	}
	return c.SendMessage(payload)
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) GetRoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
