package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// EventType names a tag lifecycle event pushed to admin feeds.
type EventType string

const (
	EventRegistered   EventType = "registered"
	EventAlertSent    EventType = "alert_sent"
	EventAlertFailed  EventType = "alert_failed"
	EventDeviceLinked EventType = "device_linked"
	EventPushToggled  EventType = "push_toggled"
	EventImported     EventType = "imported"
)

// historySize bounds the events replayed to a newly connected client.
const historySize = 20

// Message is one event broadcast to all clients.
type Message struct {
	Type  EventType      `json:"type"`
	TagID string         `json:"tag_id,omitempty"`
	At    time.Time      `json:"at"`
	Extra map[string]any `json:"extra,omitempty"`
}

// NewMessage stamps an event for tagID with the current time.
func NewMessage(typ EventType, tagID string, extra map[string]any) Message {
	return Message{
		Type:  typ,
		TagID: tagID,
		At:    time.Now().UTC(),
		Extra: extra,
	}
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
// It also keeps the last few events so a client that connects late sees
// recent alert history.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	history [][]byte
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub and queues recent history for it.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	for _, data := range h.history {
		select {
		case c.send <- data:
		default:
		}
	}
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

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.history = append(h.history, data)
	if len(h.history) > historySize {
		h.history = h.history[len(h.history)-historySize:]
	}

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full, drop message to avoid blocking
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
