package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"gridloss/internal/lossengine/application/eventbus"
	"gridloss/internal/lossengine/application/events"
	"gridloss/internal/observability/metrics"
)

// Message types sent to stream clients.
const (
	TypeSnapshotCurrent = "snapshot:current"
	TypeSnapshotRebuilt = "snapshot:rebuilt"
	TypeRebuildFailed   = "rebuild:failed"
)

// Envelope wraps every message sent over the stream.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Client represents a connected WebSocket client.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks stream clients and fans out snapshot events to them. Slow
// clients drop messages instead of blocking the publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	logger  *log.Logger
}

// NewHub constructs a hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		clients: make(map[*Client]bool),
		logger:  logger,
	}
}

// Subscribe forwards rebuild events from bus to connected clients.
func (h *Hub) Subscribe(bus eventbus.EventBus) {
	eventbus.On(bus, func(_ context.Context, evt events.SnapshotRebuilt) error {
		return h.Publish(TypeSnapshotRebuilt, evt)
	})
	eventbus.On(bus, func(_ context.Context, evt events.RebuildFailed) error {
		return h.Publish(TypeRebuildFailed, evt)
	})
}

// Publish encodes an envelope and broadcasts it.
func (h *Hub) Publish(msgType string, payload any) error {
	msg, err := json.Marshal(Envelope{Type: msgType, Payload: payload})
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	metrics.AddStreamClients(1)
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		metrics.AddStreamClients(-1)
	}
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
			metrics.IncStreamMessage(metrics.ResultSuccess)
		default:
			metrics.IncStreamMessage(metrics.ResultDropped)
			h.logger.Printf("stream client buffer full, dropping message")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
