package realtime

import (
	"log/slog"
	"sync"

	chatmodel "converse/internal/model/chat"
)

// Realtime event names, shared with the frontend protocol.
const (
	EventSetup           = "setup"
	EventConnected       = "connected"
	EventJoinChat        = "join-chat"
	EventNewMessage      = "new-message"
	EventMessageReceived = "message received"
	EventTyping          = "typing"
	EventStopTyping      = "stop-typing"
)

// personalRoom is the per-user delivery channel: a user receives messages
// here even for chats they never joined this session.
func personalRoom(userID string) string {
	return "user:" + userID
}

// chatRoom carries typing indicators for one chat.
func chatRoom(chatID string) string {
	return "chat:" + chatID
}

// Hub is the room registry: the only shared mutable state of the realtime
// layer. Domain services never touch it directly; they hand fully populated
// views to the delivery coordinator instead.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	log   *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
		log:   log,
	}
}

// Join adds the client to a room. Joining twice is a no-op.
func (h *Hub) Join(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
}

// Leave removes the client from a room.
func (h *Hub) Leave(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(room, c)
}

// Remove detaches the client from every room. After Remove returns no
// broadcast will enqueue onto the client again.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.rooms {
		h.dropLocked(room, c)
	}
}

func (h *Hub) dropLocked(room string, c *Client) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Broadcast emits an event to every client in the room except the excluded
// one. Emission is best effort: slow clients drop events rather than block
// the hub.
func (h *Hub) Broadcast(room, event string, data interface{}, except *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		if c == except {
			continue
		}
		c.enqueue(outbound{Event: event, Data: data})
	}
}

// DeliverMessage fans a persisted message out to the personal room of every
// chat member except the sender. Members without a live connection simply
// receive nothing.
func (h *Hub) DeliverMessage(msg chatmodel.MessageView) {
	if msg.Chat == nil {
		h.log.Debug("message view without chat, skipping delivery", "message", msg.ID)
		return
	}
	for _, member := range msg.Chat.Users {
		if member.ID == msg.Sender.ID {
			continue
		}
		h.Broadcast(personalRoom(member.ID), EventMessageReceived, msg, nil)
	}
}

func (h *Hub) occupancy(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
