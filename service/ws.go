package service

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeTimeout bounds a single broadcast write; clients slower than this
// are disconnected rather than allowed to stall the editor.
const writeTimeout = 5 * time.Second

// Event is a change notification pushed to connected editor clients.
type Event struct {
	Type   string `json:"type"`
	FlowID string `json:"flow_id,omitempty"`
	NodeID string `json:"node_id,omitempty"`
}

// wsClient pairs a connection with its write lock. Gorilla connections
// permit one concurrent writer, so every write goes through the mutex.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(event)
}

// Hub broadcasts editor events to connected websocket clients. It implements
// the reconciler's notifier hook so pin changes reach open editors without
// the reconciler knowing about transports.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

// NewHub creates a hub with no connected clients.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				// Editor clients connect from file:// and dev servers.
				return true
			},
		},
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// ServeHTTP upgrades the request and keeps the connection registered until
// the client disconnects. Inbound frames are consumed and discarded; the
// editor protocol is push-only.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	client := &wsClient{conn: conn}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("editor client connected", "clients", count)

	defer h.remove(client)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// NotifyPinsChanged broadcasts a pin-change event for a node. It satisfies
// the reconciler's notifier hook.
func (h *Hub) NotifyPinsChanged(nodeID string) {
	h.Broadcast(Event{Type: "pins_changed", NodeID: nodeID})
}

// Broadcast sends an event to every connected client. Clients whose writes
// fail are dropped.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	snapshot := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		snapshot = append(snapshot, client)
	}
	h.mu.RUnlock()

	for _, client := range snapshot {
		if err := client.send(event); err != nil {
			h.logger.Debug("dropping editor client", "error", err)
			h.remove(client)
		}
	}
}

// ClientCount returns the number of connected editor clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects all clients and refuses new registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for client := range clients {
		_ = client.conn.Close()
	}
}

func (h *Hub) remove(client *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		_ = client.conn.Close()
	}
	h.mu.Unlock()
}
