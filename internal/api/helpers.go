package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mailpilot/backend/internal/auth"
	"github.com/mailpilot/backend/internal/db"
)

// ErrorResponse is the JSON body for every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSONResponse encodes the response to a buffer first to prevent partial
// writes, then sends it. Returns false if encoding failed (a 500 has already
// been written).
func WriteJSONResponse(w http.ResponseWriter, response any) bool {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(response); err != nil {
		log.Printf("API: Failed to encode response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return false
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("API: Failed to write response: %v", err)
		return false
	}
	return true
}

// WriteJSONError sends an ErrorResponse with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, message, details string) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(ErrorResponse{Error: message, Details: details}); err != nil {
		log.Printf("API: Failed to encode error response: %v", err)
		http.Error(w, message, status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("API: Failed to write error response: %v", err)
	}
}

// GetUserIDFromContext extracts the owner's email from context, resolves it
// to the account row, and writes appropriate HTTP errors when it fails.
// Returns (accountID, true) on success.
func GetUserIDFromContext(ctx context.Context, w http.ResponseWriter, pool *pgxpool.Pool) (string, bool) {
	email, ok := auth.GetUserEmailFromContext(ctx)
	if !ok {
		log.Println("API: No user email in context")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", false
	}

	accountID, err := db.EnsureAccount(ctx, pool, email)
	if err != nil {
		log.Printf("API: Failed to resolve account: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return "", false
	}

	return accountID, true
}

// ParsePaginationParams parses page and limit from query parameters.
// Returns default values (page=1, limit=defaultLimit) if parameters are missing or invalid.
func ParsePaginationParams(r *http.Request, defaultLimit int) (page, limit int) {
	page = 1
	limit = defaultLimit

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if parsed, err := strconv.Atoi(pageStr); err == nil && parsed > 0 {
			page = parsed
		}
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	return page, limit
}
