// Package push fans proactive notifications out to live clients over a
// persistent WebSocket channel, alongside the REST-polling surface the
// Scheduler also serves (spec §4.9's "push to client").
package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// writeTimeout bounds how long a single client write may take before it is
// dropped rather than blocking the whole fan-out.
const writeTimeout = 5 * time.Second

// Event is one proactive notification pushed to connected clients.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Payload   any    `json:"payload"`
}

// Hub tracks connected clients and fans Events out to them. The zero value
// is not usable; construct with [NewHub].
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	logger  *slog.Logger
}

type client struct {
	conn      *websocket.Conn
	sessionID string
}

// NewHub returns an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{clients: make(map[*client]struct{}), logger: logger}
}

// ServeHTTP upgrades the request to a WebSocket and registers the
// connection for fan-out until it disconnects. sessionID (from the
// "session_id" query parameter) scopes which events the client receives;
// empty means "all sessions" (used by dashboards).
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("push: accept failed", "error", err)
		return
	}
	c := &client{conn: conn, sessionID: r.URL.Query().Get("session_id")}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		conn.CloseNow()
	}()

	// Block until the client disconnects; a push connection has nothing to
	// read but we must notice the close.
	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

// Broadcast sends event to every connected client whose session scope
// matches (event.SessionID == "" reaches everyone; a client subscribed to
// a specific session only receives events for that session or untargeted
// ones). Send failures are logged and the offending client is dropped;
// one slow client never blocks delivery to the others.
func (h *Hub) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("push: marshal event", "error", err)
		return
	}

	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if event.SessionID == "" || c.sessionID == "" || c.sessionID == event.SessionID {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		go h.send(c, data)
	}
}

func (h *Hub) send(c *client, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		h.logger.Debug("push: drop client after write failure", "error", err)
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		c.conn.Close(websocket.StatusInternalError, "write failed")
	}
}
