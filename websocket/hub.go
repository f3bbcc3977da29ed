package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"home-service-server/notifications"
)

// Client represents a connected WebSocket client
type Client struct {
	Hub  *Hub
	Key  string // "role:id" of the authenticated user
	Conn *websocket.Conn
	Send chan []byte
}

// Hub tracks live connections and delivers lifecycle events to them.
// A user may hold several connections at once.
type Hub struct {
	clients map[string]map[*Client]struct{}

	Register   chan *Client
	Unregister chan *Client

	// Message handlers for inbound client frames
	MessageHandlers map[string]MessageHandler

	logger *zap.Logger
	done   chan struct{}
	mu     sync.RWMutex
}

// Message is the frame sent over the socket
type Message struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// MessageHandler handles an inbound message type
type MessageHandler func(*Client, *Message) error

// NewHub creates a new WebSocket hub
func NewHub(logger *zap.Logger) *Hub {
	hub := &Hub{
		clients:         make(map[string]map[*Client]struct{}),
		Register:        make(chan *Client),
		Unregister:      make(chan *Client),
		MessageHandlers: make(map[string]MessageHandler),
		logger:          logger,
		done:            make(chan struct{}),
	}
	hub.MessageHandlers["ping"] = hub.handlePing
	return hub
}

// Run processes registrations until ctx is done, then drops every connection
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if h.clients[client.Key] == nil {
				h.clients[client.Key] = make(map[*Client]struct{})
			}
			h.clients[client.Key][client] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("websocket client registered", zap.String("user", client.Key))

		case client := <-h.Unregister:
			h.remove(client)
			h.logger.Debug("websocket client unregistered", zap.String("user", client.Key))

		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for key, set := range h.clients {
				for c := range set {
					close(c.Send)
				}
				delete(h.clients, key)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[client.Key]
	if !ok {
		return
	}
	if _, ok := set[client]; ok {
		delete(set, client)
		close(client.Send)
	}
	if len(set) == 0 {
		delete(h.clients, client.Key)
	}
}

// SendToUser queues a message on every connection of the user and reports how many accepted it
func (h *Hub) SendToUser(key string, message *Message) int {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("marshal websocket message", zap.Error(err))
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for client := range h.clients[key] {
		select {
		case client.Send <- data:
			sent++
		default:
			h.logger.Warn("websocket send buffer full", zap.String("user", key))
		}
	}
	return sent
}

// Publish implements notifications.Sink. Offline users read the event from their inbox instead.
func (h *Hub) Publish(_ context.Context, event notifications.Event) error {
	h.SendToUser(event.Recipient(), &Message{
		Type:      string(event.Name),
		Timestamp: event.OccurredAt,
		Data:      event,
	})
	return nil
}

// IsUserConnected checks if a user has at least one live connection
func (h *Hub) IsUserConnected(key string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[key]) > 0
}

// ConnectionCount returns the number of live connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// handlePing handles ping messages for connection health
func (h *Hub) handlePing(client *Client, _ *Message) error {
	return client.SendMessage(&Message{Type: "pong", Timestamp: time.Now()})
}
