package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

// Message is one push to connected UIs.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const (
	MessageSearch     = "search"
	MessageCollection = "collection"
)

// Hub fans snapshots out to websocket subscribers.
type Hub struct {
	clients    map[subscriber]bool
	broadcast  chan Message
	register   chan subscriber
	unregister chan subscriber
	origins    []string
	logger     *log.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// subscriber is a connected client; tests use channel-only fakes.
type subscriber interface {
	sendChannel() chan []byte
	close()
}

type wsClient struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *wsClient) sendChannel() chan []byte { return c.send }

func (c *wsClient) close() {
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}

// NewHub accepts upgrades from origins matching the given host patterns.
func NewHub(origins []string, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[subscriber]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan subscriber),
		unregister: make(chan subscriber),
		origins:    origins,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run processes registrations and broadcasts until Stop.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.add(c)

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.sendChannel())
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Printf("websocket client disconnected (total: %d)", n)

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.Printf("ERROR: marshal websocket message: %v", err)
				continue
			}
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.sendChannel() <- data:
				default:
					// slow consumer
					close(c.sendChannel())
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// add records c unless the hub is stopped, in which case c is closed at once.
func (h *Hub) add(c subscriber) {
	h.mu.Lock()
	if h.ctx.Err() != nil {
		h.mu.Unlock()
		close(c.sendChannel())
		c.close()
		return
	}
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Printf("websocket client connected (total: %d)", n)
}

// Stop ends Run and closes every connection.
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	for c := range h.clients {
		close(c.sendChannel())
		c.close()
	}
	h.clients = make(map[subscriber]bool)
	h.mu.Unlock()
}

// Broadcast queues msg for every client. It never blocks.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Printf("WARNING: websocket broadcast channel full, dropping %s message", msg.Type)
	}
}

func (h *Hub) Register(c subscriber) {
	select {
	case h.register <- c:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Unregister(c subscriber) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.logger.Printf("ERROR: websocket upgrade failed: %v", err)
		return
	}

	c := &wsClient{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, 64),
	}
	h.Register(c)

	go c.writePump()
	go c.readPump()
}

func (c *wsClient) writePump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for msg := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, msg)
		cancel()
		if err != nil {
			c.hub.logger.Printf("ERROR: websocket write to %s failed: %v", c.id, err)
			return
		}
	}
}

// readPump drains client frames to notice disconnects.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := c.conn.Read(c.hub.ctx); err != nil {
			return
		}
	}
}
