package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Message is a live update pushed to dashboards.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     int64          `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`

	// Members limits delivery to clients bound to one of these members.
	// Nil delivers to every client, including unbound household displays.
	Members []int64 `json:"-"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// For returns a copy of m restricted to memberIDs.
func (m Message) For(memberIDs ...int64) Message {
	m.Members = append([]int64{}, memberIDs...)
	return m
}

func (m Message) deliverableTo(memberID int64) bool {
	if m.Members == nil {
		return true
	}
	return memberID != 0 && slices.Contains(m.Members, memberID)
}

// Hub maintains the set of active WebSocket clients and fans messages out
// to the ones allowed to see them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends msg to every client it is deliverable to.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !msg.deliverableTo(c.MemberID()) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Debug("client buffer full, dropping message", "type", msg.Type, "member_id", c.MemberID())
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
