package events

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"propertyleads/internal/model"
)

// AllAgents subscribes a feed to every event
const AllAgents int64 = 0

const (
	writeWait      = 5 * time.Second
	feedBufferSize = 32
)

// feed is one connected websocket. Its writer goroutine owns every data write.
type feed struct {
	conn    *websocket.Conn
	agentID int64
	send    chan Envelope
}

// Hub pushes lead events to connected websocket feeds. Agent feeds only see
// events about themselves; admin feeds see everything. A feed whose buffer is
// full is dropped, so Publish never waits on a client.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*feed]struct{}
	log      *slog.Logger
}

// NewHub creates an empty hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*feed]struct{}),
		log:     logger,
	}
}

// Serve upgrades the request and keeps the feed open until the client leaves.
// agentID is AllAgents for an admin feed.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, agentID int64) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	f := &feed{conn: conn, agentID: agentID, send: make(chan Envelope, feedBufferSize)}
	h.mu.Lock()
	h.clients[f] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("feed connected", "agent_id", agentID)

	go h.writeLoop(f)

	// Feeds are one-way; reading only notices the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(f)
}

func (h *Hub) writeLoop(f *feed) {
	for msg := range f.send {
		f.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := f.conn.WriteJSON(msg); err != nil {
			// closing the socket ends the read loop, which unregisters the feed
			f.conn.Close()
			return
		}
	}
}

// Publish queues the event on every interested feed without blocking
func (h *Hub) Publish(ctx context.Context, event model.LeadEvent) error {
	msg := NewEnvelope(event)

	h.mu.Lock()
	defer h.mu.Unlock()
	for f := range h.clients {
		if f.agentID != AllAgents && (event.AgentID == nil || *event.AgentID != f.agentID) {
			continue
		}
		select {
		case f.send <- msg:
		default:
			h.log.Warn("dropping slow feed", "agent_id", f.agentID)
			h.drop(f)
		}
	}
	return nil
}

// ClientCount returns the number of open feeds
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every feed
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for f := range h.clients {
		if f.conn != nil {
			f.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
		}
		h.drop(f)
	}
}

func (h *Hub) remove(f *feed) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(f)
}

// drop unregisters f; the caller holds h.mu
func (h *Hub) drop(f *feed) {
	if _, ok := h.clients[f]; !ok {
		return
	}
	delete(h.clients, f)
	close(f.send)
	if f.conn != nil {
		f.conn.Close()
	}
}
