package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mailpilot/backend/internal/crypto"
	"github.com/mailpilot/backend/internal/db"
	"github.com/mailpilot/backend/internal/models"
)

// maxWebhookBodyBytes caps inbound webhook payloads at 1 MiB.
const maxWebhookBodyBytes = 1 << 20

// signatureHeader carries the hex HMAC-SHA256 of the raw request body.
const signatureHeader = "X-Webhook-Signature"

// WebhookHandler records signed webhook deliveries from the mail provider.
type WebhookHandler struct {
	pool   *pgxpool.Pool
	signer *crypto.Signer
}

// NewWebhookHandler creates a new WebhookHandler instance.
func NewWebhookHandler(pool *pgxpool.Pool, signer *crypto.Signer) *WebhookHandler {
	return &WebhookHandler{
		pool:   pool,
		signer: signer,
	}
}

// HandleMailgun verifies the signature and records the event.
// The path is /webhooks/mailgun; this route is not behind RequireAuth, the
// signature is the authentication.
func (h *WebhookHandler) HandleMailgun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Failed to read request body", "")
		return
	}

	signature := r.Header.Get(signatureHeader)
	if signature == "" || !h.signer.Verify(body, signature) {
		log.Printf("WebhookHandler: Rejected delivery with bad signature")
		WriteJSONError(w, http.StatusUnauthorized, "Invalid signature", "")
		return
	}

	var payload struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Event == "" {
		WriteJSONError(w, http.StatusBadRequest, "Payload must be JSON with an event field", "")
		return
	}

	event := &models.WebhookEvent{
		Source:    "mailgun",
		EventType: payload.Event,
		Payload:   body,
	}

	if err := db.RecordWebhookEvent(ctx, h.pool, event); err != nil {
		log.Printf("WebhookHandler: Failed to record event: %v", err)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to record event", "")
		return
	}

	WriteJSONResponse(w, map[string]string{"message": "Event recorded", "id": event.ID})
}
