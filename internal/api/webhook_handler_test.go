package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailpilot/backend/internal/crypto"
	"github.com/mailpilot/backend/internal/db"
	"github.com/mailpilot/backend/internal/testutil"
)

func TestWebhookHandler_HandleMailgun(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	signer, err := crypto.NewSigner("shared-secret")
	require.NoError(t, err)

	handler := NewWebhookHandler(pool, signer)

	post := func(body, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/webhooks/mailgun", strings.NewReader(body))
		if signature != "" {
			req.Header.Set(signatureHeader, signature)
		}
		rr := httptest.NewRecorder()
		handler.HandleMailgun(rr, req)
		return rr
	}

	t.Run("records a correctly signed event", func(t *testing.T) {
		body := `{"event":"delivered","message-id":"<1@example.com>"}`
		rr := post(body, signer.Sign([]byte(body)))

		require.Equal(t, http.StatusOK, rr.Code)

		events, err := db.GetWebhookEvents(context.Background(), pool, "mailgun", 10)
		require.NoError(t, err)
		require.NotEmpty(t, events)
		assert.Equal(t, "delivered", events[0].EventType)
	})

	t.Run("rejects a missing signature", func(t *testing.T) {
		rr := post(`{"event":"delivered"}`, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("rejects a wrong signature", func(t *testing.T) {
		body := `{"event":"delivered"}`
		rr := post(body, signer.Sign([]byte("different body")))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("rejects a payload without an event field", func(t *testing.T) {
		body := `{"something":"else"}`
		rr := post(body, signer.Sign([]byte(body)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("rejects a non-JSON payload", func(t *testing.T) {
		body := `not json`
		rr := post(body, signer.Sign([]byte(body)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
