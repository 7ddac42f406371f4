package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"gridloss/internal/lossengine/application"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades GET /api/v1/stream to a websocket. New clients first
// receive the current snapshot summary, then every rebuild event.
type Handler struct {
	hub   *Hub
	query *application.QueryService
}

// NewHandler constructs a stream handler.
func NewHandler(hub *Hub, query *application.QueryService) (*Handler, error) {
	if hub == nil {
		return nil, errors.New("stream: nil hub")
	}
	if query == nil {
		return nil, errors.New("stream: nil query service")
	}
	return &Handler{hub: hub, query: query}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.logger.Printf("stream upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, 16),
	}
	h.attach(r.Context(), client)
	go client.writePump()
	h.readPump(client)
}

// attach queues the current summary ahead of any broadcast, then registers
// the client. A rebuild that lands between the two never reaches the hub's
// copy for this client, so the summary is re-read once registered.
func (h *Handler) attach(ctx context.Context, c *Client) {
	version := h.queueCurrent(ctx, c, 0)
	h.hub.Register(c)
	h.queueCurrent(ctx, c, version)
}

// queueCurrent sends snapshot:current when the latest version is newer than
// after and returns the version the client now holds.
func (h *Handler) queueCurrent(ctx context.Context, c *Client, after int64) int64 {
	summary, err := h.query.Summary(ctx)
	if err != nil || summary.Version <= after {
		return after
	}
	msg, err := json.Marshal(Envelope{Type: TypeSnapshotCurrent, Payload: summary})
	if err != nil {
		return after
	}
	select {
	case c.send <- msg:
	default:
		h.hub.logger.Printf("stream client buffer full, dropping current snapshot")
		return after
	}
	return summary.Version
}

// readPump drains client frames until the connection closes; the stream is
// server-to-client only.
func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.hub.logger.Printf("stream read error: %v", err)
			}
			return
		}
	}
}
