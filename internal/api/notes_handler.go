package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mailpilot/backend/internal/db"
	"github.com/mailpilot/backend/internal/models"
)

// NotesHandler handles note-related API requests.
type NotesHandler struct {
	pool *pgxpool.Pool
}

// NewNotesHandler creates a new NotesHandler instance.
func NewNotesHandler(pool *pgxpool.Pool) *NotesHandler {
	return &NotesHandler{pool: pool}
}

type noteRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ListNotes returns the user's notes, most recently updated first.
func (h *NotesHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	page, limit := ParsePaginationParams(r, 100)

	notes, err := db.GetNotesForUser(ctx, h.pool, userID, limit, (page-1)*limit)
	if err != nil {
		log.Printf("NotesHandler: Failed to list notes: %v", err)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to list notes", "")
		return
	}

	if notes == nil {
		notes = []*models.Note{}
	}

	WriteJSONResponse(w, map[string]any{"notes": notes})
}

// CreateNote creates a new note.
func (h *NotesHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if req.Title == "" {
		WriteJSONError(w, http.StatusBadRequest, "title is required", "")
		return
	}

	note := &models.Note{
		UserID: userID,
		Title:  req.Title,
		Body:   req.Body,
	}

	if err := db.CreateNote(ctx, h.pool, note); err != nil {
		log.Printf("NotesHandler: Failed to create note: %v", err)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to create note", "")
		return
	}

	WriteJSONResponse(w, note)
}

// GetNote returns one note. The path is /api/v1/notes/{id}.
func (h *NotesHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	noteID, ok := pathSuffix(w, r, "/api/v1/notes/")
	if !ok {
		return
	}

	note, err := db.GetNoteByID(ctx, h.pool, userID, noteID)
	if errors.Is(err, db.ErrNoteNotFound) {
		WriteJSONError(w, http.StatusNotFound, "Note not found", "")
		return
	}
	if err != nil {
		log.Printf("NotesHandler: Failed to get note: %v", err)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to get note", "")
		return
	}

	WriteJSONResponse(w, note)
}

// UpdateNote rewrites a note's title and body. The path is /api/v1/notes/{id}.
func (h *NotesHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	noteID, ok := pathSuffix(w, r, "/api/v1/notes/")
	if !ok {
		return
	}

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if req.Title == "" {
		WriteJSONError(w, http.StatusBadRequest, "title is required", "")
		return
	}

	note := &models.Note{
		ID:     noteID,
		UserID: userID,
		Title:  req.Title,
		Body:   req.Body,
	}

	err := db.UpdateNote(ctx, h.pool, note)
	if errors.Is(err, db.ErrNoteNotFound) {
		WriteJSONError(w, http.StatusNotFound, "Note not found", "")
		return
	}
	if err != nil {
		log.Printf("NotesHandler: Failed to update note: %v", err)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to update note", "")
		return
	}

	WriteJSONResponse(w, note)
}

// DeleteNote removes one note. The path is /api/v1/notes/{id}.
func (h *NotesHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx, w, h.pool)
	if !ok {
		return
	}

	noteID, ok := pathSuffix(w, r, "/api/v1/notes/")
	if !ok {
		return
	}

	err := db.DeleteNote(ctx, h.pool, userID, noteID)
	if errors.Is(err, db.ErrNoteNotFound) {
		WriteJSONError(w, http.StatusNotFound, "Note not found", "")
		return
	}
	if err != nil {
		log.Printf("NotesHandler: Failed to delete note: %v", err)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to delete note", "")
		return
	}

	WriteJSONResponse(w, map[string]string{"message": "Note deleted"})
}
