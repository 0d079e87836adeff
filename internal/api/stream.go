package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/lifesim/internal/engine"
)

// maxStreamConns bounds concurrent websocket clients. Each client gets
// a full state push every tick, which adds up fast at high speeds.
const maxStreamConns = 4

// writeWait is the deadline for a single websocket write.
const writeWait = 5 * time.Second

// streamClient is one connected websocket viewer.
type streamClient struct {
	conn *websocket.Conn
	send chan engine.Status
}

// streamHub fans simulation state out to websocket clients. Broadcast
// is called from the tick loop's onChange callback, so it must never
// block: slow clients get dropped ticks, not backpressure.
type streamHub struct {
	sim      *engine.Simulation
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*streamClient]struct{}
}

func newStreamHub(sim *engine.Simulation) *streamHub {
	return &streamHub{
		sim: sim,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// CORS for the rest of the API is origin-checked in
			// middleware; the stream carries no control surface.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*streamClient]struct{}),
	}
}

// Broadcast queues the current state for every connected client.
// Clients whose buffer is full skip this tick.
func (h *streamHub) Broadcast(tick uint64) {
	h.mu.Lock()
	n := len(h.clients)
	h.mu.Unlock()
	if n == 0 {
		return
	}

	st := h.sim.Status()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- st:
		default:
		}
	}
}

func (h *streamHub) handleStream(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if len(h.clients) >= maxStreamConns {
		h.mu.Unlock()
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	h.mu.Unlock()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	client := &streamClient{
		conn: conn,
		send: make(chan engine.Status, 8),
	}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	slog.Info("stream client connected", "remote", r.RemoteAddr, "clients", count)

	// Send the current state immediately so the client has something
	// to render before the next tick.
	client.send <- h.sim.Status()

	go h.writeLoop(client)
	h.readLoop(client)
}

// readLoop drains client messages (we expect none) and detects
// disconnects.
func (h *streamHub) readLoop(c *streamClient) {
	defer h.remove(c)
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *streamHub) writeLoop(c *streamClient) {
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	defer h.remove(c)

	for {
		select {
		case st, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(st); err != nil {
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *streamHub) remove(c *streamClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	c.conn.Close()
	slog.Info("stream client disconnected", "clients", count)
}
