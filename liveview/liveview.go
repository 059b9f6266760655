// Package liveview broadcasts camera frames to websocket clients.
//
// A Hub is an io.Writer, so it can be registered as a frame handler on a
// camera.  Each client has a one-frame mailbox; a client which falls behind
// sees the newest frame and misses the ones in between.  Writes to the hub
// never block on the network and never fail.
package liveview

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// DefaultWriteTimeout bounds a single websocket write
const DefaultWriteTimeout = 2 * time.Second

type client struct {
	id   string
	conn *websocket.Conn
	box  chan []byte
	done chan struct{}
}

// offer puts a frame in the mailbox, replacing one not yet sent
func (c *client) offer(b []byte) {
	for {
		select {
		case c.box <- b:
			return
		default:
		}
		select {
		case <-c.box:
		default:
		}
	}
}

// Hub fans frames out to websocket clients
type Hub struct {
	upgrader websocket.Upgrader

	// WriteTimeout bounds each websocket write, DefaultWriteTimeout if zero
	WriteTimeout time.Duration

	mu      sync.RWMutex
	clients map[string]*client
	sent    uint64
}

// NewHub returns a hub with no clients
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Write implements io.Writer.  The frame is copied and offered to every client
func (h *Hub) Write(p []byte) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return len(p), nil
	}
	b := append([]byte(nil), p...)
	for _, c := range h.clients {
		c.offer(b)
	}
	return len(p), nil
}

// ServeHTTP upgrades the connection and streams frames to it until the client goes away
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("liveview: error upgrading websocket connection from %s: %v\n", r.RemoteAddr, err)
		return
	}
	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		box:  make(chan []byte, 1),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	log.Printf("liveview: client %s connected from %s (%d total)\n", c.id, r.RemoteAddr, n)

	go h.pump(c)
	defer h.drop(c)

	// the read loop only notices the client leaving
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// pump sends frames from the mailbox until the client is dropped or a write fails
func (h *Hub) pump(c *client) {
	timeout := h.WriteTimeout
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	for {
		select {
		case <-c.done:
			return
		case b := <-c.box:
			c.conn.SetWriteDeadline(time.Now().Add(timeout))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
				log.Printf("liveview: error writing to client %s: %v\n", c.id, err)
				c.conn.Close()
				return
			}
			h.mu.Lock()
			h.sent++
			h.mu.Unlock()
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()
	close(c.done)
	c.conn.Close()
	log.Printf("liveview: client %s disconnected (%d total)\n", c.id, n)
}

// Sent returns the number of frames delivered over all clients
func (h *Hub) Sent() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sent
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.Close()
	}
}
