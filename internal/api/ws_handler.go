package api

import (
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/mailpilot/backend/internal/auth"
	ws "github.com/mailpilot/backend/internal/websocket"
)

// WebSocketHandler handles the /api/v1/ws endpoint for live triage updates.
type WebSocketHandler struct {
	hub *ws.Hub
}

// NewWebSocketHandler creates a new WebSocketHandler instance.
func NewWebSocketHandler(hub *ws.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// This server is expected to run behind a reverse proxy in a
		// trusted environment.
		return true
	},
}

// Handle upgrades the HTTP connection to a WebSocket and registers it with
// the Hub. Authentication is via query parameter (?token=...) since browsers
// cannot set custom headers on WebSocket connections; the Authorization
// header is accepted as a fallback for non-browser clients.
func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		fields := strings.Fields(authHeader)
		if len(fields) == 2 && strings.EqualFold(fields[0], "Bearer") {
			token = fields[1]
		}
	}

	if token == "" {
		log.Printf("WebSocketHandler: No token provided")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if _, err := auth.ValidateToken(token); err != nil {
		log.Printf("WebSocketHandler: Token validation failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocketHandler: Failed to upgrade connection: %v", err)
		return
	}

	client := h.hub.Register(conn)
	if client == nil {
		log.Printf("WebSocketHandler: Connection rejected (max connections exceeded)")
		return
	}

	go h.readLoop(client)
}

// readLoop reads messages from the WebSocket until the connection is closed,
// then unregisters the client.
func (h *WebSocketHandler) readLoop(client *ws.Client) {
	conn := client.Conn()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.hub.Unregister(client)
}
