// Package push implements the websocket transport for
// internal/sync.RemoteSource: Hub is the server side that proactively
// pushes sync batches to connected downstream nodes instead of waiting
// to be polled, grounded on
// cmd/server/handlers/silence_ws.go + dashboard_ws.go. Source is the
// client-side counterpart that dials a Hub and blocks for the next
// push.
package push

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	flagsync "github.com/vitaliisemenov/flagcore/internal/sync"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub manages websocket connections from downstream flagcore nodes and
// pushes each published batch to all of them, the same
// register/unregister/broadcast channel shape as
// cmd/server/handlers.WebSocketHub, generalized from a SilenceEvent
// payload to sync.Batch.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan flagsync.Batch
	register   chan *websocket.Conn
	unregister chan *websocket.Conn

	mu     sync.RWMutex
	logger *slog.Logger
}

// NewHub constructs a Hub. Run its event loop with Start before
// accepting connections via ServeHTTP.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan flagsync.Batch, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		logger:     logger.With("component", "sync_push_hub"),
	}
}

// Start runs the hub's event loop until ctx is cancelled. Call it in
// its own goroutine.
func (h *Hub) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("push client registered", "total_clients", count)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()

		case batch := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.clients {
				go h.sendTo(conn, batch)
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) sendTo(conn *websocket.Conn, batch flagsync.Batch) {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(batch); err != nil {
		h.logger.Warn("push send failed, unregistering client", "error", err)
		select {
		case h.unregister <- conn:
		default:
		}
	}
}

// Publish queues batch for delivery to every connected client,
// dropping it (with a warning) if the broadcast channel is full.
func (h *Hub) Publish(batch flagsync.Batch) {
	select {
	case h.broadcast <- batch:
	default:
		h.logger.Warn("push broadcast channel full, dropping batch")
	}
}

// ServeHTTP upgrades the request to a websocket and registers the
// connection to receive pushes. Downstream nodes don't send data over
// this connection; readPump only exists to detect disconnects and keep
// the connection alive.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("push upgrade failed", "error", err)
		return
	}
	h.register <- conn
	go h.readPump(conn)
}

func (h *Hub) readPump(conn *websocket.Conn) {
	defer func() { h.unregister <- conn }()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// ClientCount reports the number of currently-connected downstream
// nodes, for metrics/diagnostics.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]bool)
}
