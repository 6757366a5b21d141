package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event types pushed to connected viewers.
const (
	EventTriageComplete = "triage_complete"
	EventEmailDeleted   = "email_deleted"
)

// Event is one live update message.
type Event struct {
	Type      string `json:"type"`
	EmailID   string `json:"emailId,omitempty"`
	NumEmails int    `json:"numEmails,omitempty"`
}

// Client wraps a WebSocket connection.
type Client struct {
	conn *websocket.Conn
}

// Conn returns the underlying WebSocket connection.
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

// Hub manages active WebSocket connections. This is a single-tenant service,
// so every connected client receives every event.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	maxClients int
}

// NewHub creates a new Hub with a connection limit.
func NewHub(maxClients int) *Hub {
	if maxClients <= 0 {
		maxClients = 10
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		maxClients: maxClients,
	}
}

// Register adds a WebSocket connection.
// If the limit is exceeded, the new connection is closed and nil is returned.
func (h *Hub) Register(conn *websocket.Conn) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) >= h.maxClients {
		log.Printf("websocket: max connections (%d) exceeded, closing new connection", h.maxClients)
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many connections"),
			time.Time{},
		)
		_ = conn.Close()
		return nil
	}

	client := &Client{conn: conn}
	h.clients[client] = struct{}{}
	return client
}

// Unregister removes a client and closes the connection.
func (h *Hub) Unregister(client *Client) {
	if client == nil {
		return
	}

	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()

	_ = client.conn.Close()
}

// Broadcast sends an event to all active clients.
func (h *Hub) Broadcast(event Event) {
	msg, err := json.Marshal(event)
	if err != nil {
		log.Printf("websocket: failed to encode event: %v", err)
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("websocket: failed to write event: %v", err)
			// Best-effort cleanup: unregister this client.
			go h.Unregister(client)
		}
	}
}

// ActiveConnections returns the number of active WebSocket connections.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
