// Package sessionapi is the gateway's inbound/outbound wire boundary:
// HTTP ingress for orders, a per-session worker pool that preserves
// intra-session order while sessions run concurrently, a websocket hub
// for outbound execution reports and rejects, and a JWT-protected ops
// surface for halt/resume/audit.
package sessionapi

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// OutboundEventType names the kind of message delivered to a session
// over its websocket connection.
type OutboundEventType string

const (
	EventExecutionReport OutboundEventType = "execution_report"
	EventReject          OutboundEventType = "reject"
	EventOrderRouted     OutboundEventType = "order_routed"
)

// OutboundEvent is what the fixadapter.Gateway implementation in this
// package hands to the Hub for delivery to the originating session.
type OutboundEvent struct {
	Type    OutboundEventType `json:"type"`
	Payload interface{}       `json:"payload"`
}

// client is one session's websocket connection.
type client struct {
	sessionID string
	conn      *websocket.Conn
	send      chan []byte
}

func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("sessionapi: websocket error for session %s: %v", c.sessionID, err)
			}
			return
		}
	}
}

// Hub tracks one websocket connection per session and fans outbound
// events to whichever session they're addressed to.
type Hub struct {
	clients    map[string]*client
	register   chan *client
	unregister chan *client
	deliver    chan deliverRequest
	mu         sync.RWMutex
}

type deliverRequest struct {
	sessionID string
	event     OutboundEvent
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*client),
		register:   make(chan *client),
		unregister: make(chan *client),
		deliver:    make(chan deliverRequest, 256),
	}
}

// Run drives registration and delivery until stop is closed.
func (h *Hub) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			h.mu.Lock()
			for _, c := range h.clients {
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[c.sessionID]; ok {
				close(old.send)
			}
			h.clients[c.sessionID] = c
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[c.sessionID]; ok && current == c {
				delete(h.clients, c.sessionID)
				close(c.send)
			}
			h.mu.Unlock()

		case req := <-h.deliver:
			h.mu.RLock()
			c, ok := h.clients[req.sessionID]
			h.mu.RUnlock()
			if !ok {
				continue
			}
			data, err := json.Marshal(req.event)
			if err != nil {
				continue
			}
			select {
			case c.send <- data:
			default:
			}
		}
	}
}

// Deliver queues event for the given session's connection, if one is
// currently attached. A session with no live connection silently drops
// the event — the order/audit state is still recorded in the Store.
func (h *Hub) Deliver(sessionID string, event OutboundEvent) {
	select {
	case h.deliver <- deliverRequest{sessionID: sessionID, event: event}:
	default:
		log.Printf("sessionapi: dropping event for session %s, hub backlog full", sessionID)
	}
}

// ServeWS upgrades the request and attaches it to sessionID.
func (h *Hub) ServeWS(sessionID string, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("sessionapi: websocket upgrade error: %v", err)
		return
	}

	c := &client{sessionID: sessionID, conn: conn, send: make(chan []byte, 256)}
	h.register <- c

	go c.writePump()
	go c.readPump(h)
}
