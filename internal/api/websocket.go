package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Nowon11/Infinity-Cubes/internal/domain"
	"github.com/Nowon11/Infinity-Cubes/internal/world"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	sendBufferSize = 256
)

// Inbound messages are throttled per connection
const (
	messagesPerSecond = 5
	messageBurst      = 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The game client is served from arbitrary origins in development
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks live WebSocket connections and fans world events out to them.
// A client whose send buffer is full when a broadcast arrives is dropped
// rather than allowed to stall delivery to everyone else.
type Hub struct {
	coord         *world.Coordinator
	adminUsername string

	mu      sync.Mutex
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
}

// NewHub creates a hub. Call Run in its own goroutine.
func NewHub(coord *world.Coordinator, adminUsername string) *Hub {
	return &Hub{
		coord:         coord,
		adminUsername: adminUsername,
		clients:       make(map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		broadcast:     make(chan []byte, 64),
	}
}

// Run processes registrations and broadcasts until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("Client %s connected (%d online)", client.id, count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.done)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("Client %s disconnected (%d online)", client.id, count)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Broadcast queues a message for delivery to every connected client.
func (h *Hub) Broadcast(message []byte) {
	h.broadcast <- message
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcastMessage(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			delete(h.clients, client)
			close(client.done)
		}
	}
}

// Client is one WebSocket connection. The send channel is never closed;
// the hub signals shutdown by closing done, so a readPump still dispatching
// for a pruned client can queue replies without panicking.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	limiter *rate.Limiter
}

// handleWebSocket upgrades the connection and starts the read/write pumps.
func (r *Router) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		id:      uuid.NewString(),
		hub:     r.hub,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(messagesPerSecond, messageBurst),
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump reads messages from the connection and dispatches them. A
// malformed message is logged and skipped; the connection stays up.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Client %s read error: %v", c.id, err)
			}
			return
		}

		if !c.limiter.Allow() {
			log.Printf("Client %s rate limited, dropping message", c.id)
			continue
		}

		var msg domain.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Client %s sent malformed message: %v", c.id, err)
			continue
		}
		c.dispatch(msg)
	}
}

// dispatch routes one inbound message. Mutating messages go through the
// coordinator, which also broadcasts the resulting event; nothing here
// writes to other clients directly.
func (c *Client) dispatch(msg domain.ClientMessage) {
	switch msg.Type {
	case domain.MsgChat:
		if msg.Username == "" || msg.Message == "" {
			return
		}
		c.hub.coord.Chat(msg.Username, msg.Message)

	case domain.MsgRareCube:
		if msg.Username == "" || msg.Rarity == "" {
			return
		}
		c.hub.coord.RareCube(msg.Username, msg.Rarity, msg.Odds)

	case domain.MsgGetZoneInfo:
		zone, timer := c.hub.coord.ZoneInfo()
		c.reply(domain.ZoneInfoEvent{Type: domain.MsgZoneInfo, Zone: zone, Timer: timer})

	case domain.MsgRequestDiamondStorm:
		c.hub.coord.StartDiamondStorm()

	case domain.MsgAdminSetZone:
		if msg.Username != c.hub.adminUsername {
			log.Printf("Client %s attempted admin zone change as %q", c.id, msg.Username)
			return
		}
		if err := c.hub.coord.SetZone(msg.Zone); err != nil {
			log.Printf("Admin zone change rejected: %v", err)
		}

	case domain.MsgAdminResetZoneTimer:
		if msg.Username != c.hub.adminUsername {
			log.Printf("Client %s attempted admin timer reset as %q", c.id, msg.Username)
			return
		}
		c.hub.coord.ResetZoneTimer()

	default:
		log.Printf("Client %s sent unknown message type %q", c.id, msg.Type)
	}
}

// reply sends a message to this client only.
func (c *Client) reply(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("Error marshaling reply: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
		// buffer full; the client will be pruned on the next broadcast
	}
}

// writePump writes queued messages and keeps the connection alive with
// pings. One goroutine per connection owns all writes.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// drain anything queued behind this message
			for i := 0; i < len(c.send); i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
