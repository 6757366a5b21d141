package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/mailpilot/backend/internal/mailer"
)

// Sender is the outbound mail surface the handler needs.
type Sender interface {
	Send(ctx context.Context, msg *mailer.Message) error
}

// SendHandler handles the outbound email API requests.
type SendHandler struct {
	sender Sender
}

// NewSendHandler creates a new SendHandler instance.
func NewSendHandler(sender Sender) *SendHandler {
	return &SendHandler{sender: sender}
}

type sendRequest struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// SendEmail submits one outbound email over SMTP.
func (h *SendHandler) SendEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if len(req.To) == 0 {
		WriteJSONError(w, http.StatusBadRequest, "at least one recipient is required", "")
		return
	}

	if req.Subject == "" {
		WriteJSONError(w, http.StatusBadRequest, "subject is required", "")
		return
	}

	msg := &mailer.Message{
		To:      req.To,
		Subject: req.Subject,
		Body:    req.Body,
	}

	if err := h.sender.Send(ctx, msg); err != nil {
		log.Printf("SendHandler: Failed to send email: %v", err)
		WriteJSONError(w, http.StatusBadGateway, "Failed to send email", err.Error())
		return
	}

	WriteJSONResponse(w, map[string]string{"message": "Email sent"})
}
