package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/mailpilot/backend/internal/auth"
)

// createRequestWithUser creates an HTTP request with user email in context.
func createRequestWithUser(method, url, email string) *http.Request {
	return createRequestWithUserAndBody(method, url, email, "")
}

// createRequestWithUserAndBody creates an HTTP request with user email in
// context and a JSON body.
func createRequestWithUserAndBody(method, url, email, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	ctx := context.WithValue(req.Context(), auth.UserEmailKey, email)
	return req.WithContext(ctx)
}
