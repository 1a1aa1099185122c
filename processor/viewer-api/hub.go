package viewerapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/c360studio/openspec-viewer/openspec"
)

const (
	// MessageTypeRefresh tells clients to refresh the named entity.
	MessageTypeRefresh = "data:refresh"

	clientSendBuffer = 32
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMessageSize   = 512

	sseHeartbeat = 30 * time.Second
)

// Message is sent to live-update clients.
type Message struct {
	Type     string          `json:"type"`
	Entity   openspec.Entity `json:"entity"`
	EntityID string          `json:"entityId,omitempty"`
	Data     any             `json:"data,omitempty"`
}

// connectedMessage is sent to every client as soon as it connects.
var connectedMessage = Message{Type: MessageTypeRefresh, Entity: openspec.EntityAll}

type clientKind string

const (
	clientWebSocket clientKind = "websocket"
	clientSSE       clientKind = "sse"
)

type client struct {
	id   string
	kind clientKind
	send chan []byte
}

// Hub fans out refresh messages to websocket and server-sent-event clients.
// It is created at startup and closed on shutdown.
type Hub struct {
	logger   *slog.Logger
	metrics  *Metrics
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger, metrics *Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[string]*client),
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// register adds a client and queues the connected message for it.
func (h *Hub) register(kind clientKind) (*client, error) {
	payload, err := json.Marshal(connectedMessage)
	if err != nil {
		return nil, err
	}

	c := &client{id: uuid.NewString(), kind: kind, send: make(chan []byte, clientSendBuffer)}
	c.send <- payload

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, fmt.Errorf("hub closed")
	}
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetClients(n)
	h.logger.Debug("Client connected", "client_id", c.id, "kind", kind, "clients", n)
	return c, nil
}

// unregister removes a client and closes its send channel. Safe to call
// more than once.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetClients(n)
	h.logger.Debug("Client disconnected", "client_id", c.id, "clients", n)
}

// Broadcast sends msg to every client. Clients whose buffers are full are
// disconnected rather than allowed to stall the others.
func (h *Hub) Broadcast(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("Failed to marshal broadcast message", "error", err)
		return
	}

	var slow []*client
	h.mu.RLock()
	for _, c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("Client too slow, disconnecting", "client_id", c.id)
		h.unregister(c)
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[string]*client)
	for _, c := range clients {
		close(c.send)
	}
	h.mu.Unlock()

	h.metrics.SetClients(0)
}

// ServeWS upgrades the request to a websocket and streams refresh messages
// until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("Websocket upgrade failed", "error", err)
		return
	}

	c, err := h.register(clientWebSocket)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}

	go h.writePump(conn, c)
	h.readPump(conn, c)
}

// readPump discards client input and detects disconnects.
func (h *Hub) readPump(conn *websocket.Conn, c *client) {
	defer func() {
		h.unregister(c)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Websocket read error", "client_id", c.id, "error", err)
			}
			return
		}
	}
}

// writePump delivers queued messages and keeps the connection alive.
func (h *Hub) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeSSE streams refresh messages as server-sent events.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	flusher.Flush()

	c, err := h.register(clientSSE)
	if err != nil {
		return
	}
	defer h.unregister(c)

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	var eventID uint64
	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case payload, ok := <-c.send:
			if !ok {
				return
			}
			eventID++
			if _, err := fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", MessageTypeRefresh, eventID, payload); err != nil {
				h.logger.Debug("Client disconnected during event", "client_id", c.id, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}
