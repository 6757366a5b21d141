package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ws "github.com/mailpilot/backend/internal/websocket"
)

func TestWebSocketHandler_Handle(t *testing.T) {
	t.Setenv("MAILPILOT_API_TOKEN", "valid_token")
	t.Setenv("MAILPILOT_ACCOUNT_EMAIL", "owner@example.com")

	hub := ws.NewHub(10)
	handler := NewWebSocketHandler(hub)

	server := httptest.NewServer(http.HandlerFunc(handler.Handle))
	defer server.Close()

	wsURL := "ws" + server.URL[4:]

	t.Run("connects and receives broadcast events", func(t *testing.T) {
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token=valid_token", nil)
		require.NoError(t, err)
		defer conn.Close()

		require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

		// Registration races with the dial returning; wait for the hub to
		// see the client before broadcasting.
		deadline := time.Now().Add(2 * time.Second)
		for hub.ActiveConnections() == 0 && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		require.Equal(t, 1, hub.ActiveConnections())

		hub.Broadcast(ws.Event{Type: ws.EventEmailDeleted, EmailID: "42"})

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)

		var event ws.Event
		require.NoError(t, json.Unmarshal(msg, &event))
		assert.Equal(t, ws.EventEmailDeleted, event.Type)
		assert.Equal(t, "42", event.EmailID)
	})

	t.Run("rejects connection without token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil) //nolint:bodyclose
		require.Error(t, err)
		if resp != nil {
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			resp.Body.Close()
		}
	})

	t.Run("rejects connection with wrong token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token=wrong", nil) //nolint:bodyclose
		require.Error(t, err)
		if resp != nil {
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			resp.Body.Close()
		}
	})
}
