package server

import (
	"context"
	"net/http"
	"sync"

	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/dubedition/guidecore/internal/fragment"
	"github.com/dubedition/guidecore/internal/guide"
)

// upgrader accepts any origin; the CORS policy on the API routes is the
// real gate, and the socket only ever pushes public page state.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the outgoing WebSocket frame.
type Message struct {
	// Type is "hello", "fragment", or "reload".
	Type     string `json:"type"`
	Fragment string `json:"fragment,omitempty"`
	State    string `json:"state,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Hub streams fragment lifecycle events and reload notices to connected
// browsers. A page script listens and patches the DOM or refetches.
type Hub struct {
	engine *guide.Engine

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewHub creates a hub over the engine's event stream.
func NewHub(engine *guide.Engine) *Hub {
	return &Hub{
		engine: engine,
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

// handleWS upgrades the connection and parks it in the hub. The read
// loop exists only to notice the client going away.
func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	h.send(conn, Message{Type: "hello"})

	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("websocket read failed", slog.String("error", err.Error()))
				}
				return
			}
		}
	}()
}

// Run pumps fragment events to clients until ctx is cancelled. When a
// page reload swaps the loader, the old bus closes; the hub re-subscribes
// to the new one and tells clients to refetch.
func (h *Hub) Run(ctx context.Context) {
	loader := h.engine.Loader()
	for {
		sub := h.engine.Subscribe()
		alive := h.pump(ctx, sub)
		sub.Cancel()
		if !alive || ctx.Err() != nil {
			return
		}

		next := h.engine.Loader()
		if next == loader {
			// The bus closed without a loader swap: engine shutdown.
			return
		}
		loader = next
		h.NotifyReload()
	}
}

// pump forwards one subscription's events. Returns false on ctx cancel,
// true when the subscription closed underneath us.
func (h *Hub) pump(ctx context.Context, sub *fragment.Subscription) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-sub.Events():
			if !ok {
				return true
			}
			switch ev.Type {
			case fragment.EventLoaded:
				h.Broadcast(Message{Type: "fragment", Fragment: ev.RecordID,
					State: fragment.StateLoaded.String()})
			case fragment.EventFailed:
				msg := Message{Type: "fragment", Fragment: ev.RecordID,
					State: fragment.StateFailed.String()}
				if ev.Err != nil {
					msg.Error = ev.Err.Error()
				}
				h.Broadcast(msg)
			case fragment.EventRescan:
				// Placeholder bookkeeping, nothing a browser acts on.
			}
		}
	}
}

// Broadcast sends a message to every connected client. Clients that fail
// to take the write are dropped.
func (h *Hub) Broadcast(msg Message) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		h.send(conn, msg)
	}
}

// NotifyReload tells every client the page was rebuilt.
func (h *Hub) NotifyReload() {
	h.Broadcast(Message{Type: "reload"})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// CloseAll disconnects every client. Used at shutdown; hijacked websocket
// connections are not covered by http.Server.Shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.conns = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

// send writes one frame, serialized per connection by the hub mutex.
func (h *Hub) send(conn *websocket.Conn, msg Message) {
	h.mu.Lock()
	err := conn.WriteJSON(msg)
	h.mu.Unlock()
	if err != nil {
		slog.Debug("websocket write failed", slog.String("error", err.Error()))
		h.drop(conn)
	}
}

// drop removes and closes a connection. Safe to call twice.
func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.conns[conn]
	delete(h.conns, conn)
	h.mu.Unlock()
	if ok {
		_ = conn.Close()
	}
}
