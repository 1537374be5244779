// Package wsconn provides a WebSocket broadcast hub for pushing updates to browsers.
package wsconn

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/fd1az/savvy-farm/internal/logger"
)

// Config holds hub configuration.
type Config struct {
	// SendBuffer is the per-connection queue; a client that falls this far
	// behind is disconnected.
	SendBuffer     int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	OriginPatterns []string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		SendBuffer:     32,
		WriteTimeout:   5 * time.Second,
		PingInterval:   30 * time.Second,
		OriginPatterns: []string{"*"},
	}
}

// Hub accepts WebSocket connections and fans messages out to all of them.
type Hub struct {
	config Config
	log    logger.LoggerInterface

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	// OnConnect, when set, returns messages sent to each new client first.
	OnConnect func() [][]byte

	dropped atomic.Int64
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
	done chan struct{}
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// New creates a new hub.
func New(config Config, log logger.LoggerInterface) *Hub {
	if config.SendBuffer <= 0 {
		config.SendBuffer = DefaultConfig().SendBuffer
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}
	return &Hub{
		config:  config,
		log:     log,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and streams broadcasts until the client
// disconnects or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.config.OriginPatterns,
	})
	if err != nil {
		h.log.Warn(r.Context(), "websocket accept failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, h.config.SendBuffer),
		done: make(chan struct{}),
	}

	if h.OnConnect != nil {
		for _, msg := range h.OnConnect() {
			select {
			case c.send <- msg:
			default:
			}
		}
	}

	if !h.add(c) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.remove(c)

	// CloseRead handles control frames and cancels ctx when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	h.writeLoop(ctx, c)
}

func (h *Hub) writeLoop(ctx context.Context, c *client) {
	var ping <-chan time.Time
	if h.config.PingInterval > 0 {
		t := time.NewTicker(h.config.PingInterval)
		defer t.Stop()
		ping = t.C
	}

	for {
		select {
		case <-ctx.Done():
			c.conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-c.done:
			c.conn.Close(websocket.StatusPolicyViolation, "client too slow")
			return
		case msg := <-c.send:
			if err := h.write(ctx, c, msg); err != nil {
				h.log.Debug(ctx, "websocket write failed", "error", err)
				c.conn.Close(websocket.StatusInternalError, "write failed")
				return
			}
		case <-ping:
			pctx, cancel := context.WithTimeout(ctx, h.config.WriteTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, c *client, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, h.config.WriteTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, msg)
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.stop()
}

// Broadcast queues msg for every connected client without blocking. Clients
// whose queue is full are disconnected.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.dropped.Add(1)
			delete(h.clients, c)
			c.stop()
		}
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns how many clients were disconnected for being slow.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.stop()
	}
}
