package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/mailpilot/backend/internal/mailbox"
	"github.com/mailpilot/backend/internal/models"
	"github.com/mailpilot/backend/internal/triage"
	ws "github.com/mailpilot/backend/internal/websocket"
)

// TriageService is the triage pipeline surface the handlers need.
type TriageService interface {
	Triage(ctx context.Context, forceRefresh bool) (*models.TriageOutput, error)
	Delete(ctx context.Context, id string) error
}

// TriageHandler handles the triage API requests.
type TriageHandler struct {
	service TriageService
	hub     *ws.Hub
}

// NewTriageHandler creates a new TriageHandler instance.
func NewTriageHandler(service TriageService, hub *ws.Hub) *TriageHandler {
	return &TriageHandler{
		service: service,
		hub:     hub,
	}
}

// AnalyzeEmails runs the triage pipeline and returns the full output as JSON.
// Only the literal query value refresh=true forces a refresh; anything else
// uses the caches.
func (h *TriageHandler) AnalyzeEmails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	forceRefresh := r.URL.Query().Get("refresh") == "true"

	output, err := h.service.Triage(ctx, forceRefresh)
	if err != nil {
		h.writeTriageError(w, err)
		return
	}

	h.hub.Broadcast(ws.Event{Type: ws.EventTriageComplete, NumEmails: output.NumEmails})

	WriteJSONResponse(w, output)
}

// DeleteEmail moves one email to trash and prunes it from the caches.
// The path is /delete/{id}.
func (h *TriageHandler) DeleteEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := strings.TrimPrefix(r.URL.Path, "/delete/")
	if id == "" || strings.Contains(id, "/") {
		WriteJSONError(w, http.StatusBadRequest, "Invalid email id", "")
		return
	}

	if err := h.service.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, mailbox.ErrMessageNotFound):
			WriteJSONError(w, http.StatusNotFound, "Email not found", err.Error())
		case errors.Is(err, mailbox.ErrPermissionDenied):
			WriteJSONError(w, http.StatusForbidden, "Not allowed to delete this email", err.Error())
		default:
			log.Printf("TriageHandler: Failed to delete email %s: %v", id, err)
			WriteJSONError(w, http.StatusInternalServerError, "Failed to delete email", err.Error())
		}
		return
	}

	h.hub.Broadcast(ws.Event{Type: ws.EventEmailDeleted, EmailID: id})

	WriteJSONResponse(w, map[string]string{"message": "Email moved to trash"})
}

func (h *TriageHandler) writeTriageError(w http.ResponseWriter, err error) {
	var classErr *triage.ClassificationError
	switch {
	case errors.Is(err, triage.ErrNoAPIKey):
		log.Printf("TriageHandler: Classifier not configured: %v", err)
		WriteJSONError(w, http.StatusInternalServerError, "Classifier is not configured", err.Error())
	case errors.As(err, &classErr):
		log.Printf("TriageHandler: Classification failed: %v", err)
		WriteJSONError(w, http.StatusInternalServerError, "Classification failed", err.Error())
	default:
		log.Printf("TriageHandler: Triage failed: %v", err)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to analyze emails", err.Error())
	}
}
