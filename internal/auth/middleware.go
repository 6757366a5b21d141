package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
)

type contextKey string

// UserEmailKey is the context key used to store the authenticated user's email.
const UserEmailKey contextKey = "user_email"

// RequireAuth middleware checks for a valid bearer token, validates it, and
// stores the account owner's email in the request context for use by
// downstream handlers. Returns 401 Unauthorized if authentication fails.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			log.Println("Auth: No credentials presented")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		userEmail, err := ValidateToken(token)
		if err != nil {
			log.Printf("Auth: Token validation failed: %v", err)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserEmailKey, userEmail)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken pulls the bearer token from the Authorization header
// ("Bearer <token>" per RFC 7235, scheme case-insensitive). Browser contexts
// that cannot set headers (the HTML view's delete calls, WebSocket upgrades)
// may pass the token as the token query parameter instead.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		fields := strings.Fields(authHeader)
		if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
			return ""
		}
		return fields[1]
	}
	return r.URL.Query().Get("token")
}

// GetUserEmailFromContext returns the user email from the context.
func GetUserEmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(UserEmailKey).(string)
	return email, ok
}

// ValidateToken compares the presented token against the configured API token
// and returns the account owner's email. This is a single-tenant service: one
// static token, one mailbox owner.
func ValidateToken(token string) (string, error) {
	expected := os.Getenv("MAILPILOT_API_TOKEN")
	if expected == "" {
		return "", fmt.Errorf("MAILPILOT_API_TOKEN is not configured")
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		return "", fmt.Errorf("token mismatch")
	}

	email := os.Getenv("MAILPILOT_ACCOUNT_EMAIL")
	if email == "" {
		return "", fmt.Errorf("MAILPILOT_ACCOUNT_EMAIL is not configured")
	}

	return email, nil
}
