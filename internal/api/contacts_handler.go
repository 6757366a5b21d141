package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mailpilot/backend/internal/db"
	"github.com/mailpilot/backend/internal/models"
)

// ContactsHandler handles contact-related API requests.
type ContactsHandler struct {
	pool *pgxpool.Pool
}

// NewContactsHandler creates a new ContactsHandler instance.
func NewContactsHandler(pool *pgxpool.Pool) *ContactsHandler {
	return &ContactsHandler{pool: pool}
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
}

// ListContacts returns the user's contacts.
func (h *ContactsHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	page, limit := ParsePaginationParams(r, 100)

	contacts, err := db.GetContactsForUser(ctx, h.pool, userID, limit, (page-1)*limit)
	if err != nil {
		log.Printf("ContactsHandler: Failed to list contacts: %v", err)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to list contacts", "")
		return
	}

	if contacts == nil {
		contacts = []*models.Contact{}
	}

	WriteJSONResponse(w, map[string]any{"contacts": contacts})
}

// SaveContact creates or updates a contact, keyed by email.
func (h *ContactsHandler) SaveContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if req.Name == "" || req.Email == "" {
		WriteJSONError(w, http.StatusBadRequest, "name and email are required", "")
		return
	}

	contact := &models.Contact{
		UserID:  userID,
		Name:    req.Name,
		Email:   strings.ToLower(req.Email),
		Phone:   req.Phone,
		Company: req.Company,
	}

	if err := db.SaveContact(ctx, h.pool, contact); err != nil {
		log.Printf("ContactsHandler: Failed to save contact: %v", err)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to save contact", "")
		return
	}

	WriteJSONResponse(w, contact)
}

// GetContact returns one contact. The path is /api/v1/contacts/{id}.
func (h *ContactsHandler) GetContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	contactID, ok := pathSuffix(w, r, "/api/v1/contacts/")
	if !ok {
		return
	}

	contact, err := db.GetContactByID(ctx, h.pool, userID, contactID)
	if errors.Is(err, db.ErrContactNotFound) {
		WriteJSONError(w, http.StatusNotFound, "Contact not found", "")
		return
	}
	if err != nil {
		log.Printf("ContactsHandler: Failed to get contact: %v", err)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to get contact", "")
		return
	}

	WriteJSONResponse(w, contact)
}

// DeleteContact removes one contact. The path is /api/v1/contacts/{id}.
func (h *ContactsHandler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	contactID, ok := pathSuffix(w, r, "/api/v1/contacts/")
	if !ok {
		return
	}

	err := db.DeleteContact(ctx, h.pool, userID, contactID)
	if errors.Is(err, db.ErrContactNotFound) {
		WriteJSONError(w, http.StatusNotFound, "Contact not found", "")
		return
	}
	if err != nil {
		log.Printf("ContactsHandler: Failed to delete contact: %v", err)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to delete contact", "")
		return
	}

	WriteJSONResponse(w, map[string]string{"message": "Contact deleted"})
}

// pathSuffix extracts the single path segment after the prefix, writing a 400
// when it is missing or nested.
func pathSuffix(w http.ResponseWriter, r *http.Request, prefix string) (string, bool) {
	id := strings.TrimPrefix(r.URL.Path, prefix)
	if id == "" || id == r.URL.Path || strings.Contains(id, "/") {
		WriteJSONError(w, http.StatusBadRequest, "Invalid id in path", "")
		return "", false
	}
	return id, true
}
