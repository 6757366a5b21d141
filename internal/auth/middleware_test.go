package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func setAuthEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MAILPILOT_API_TOKEN", "valid_token_12345")
	t.Setenv("MAILPILOT_ACCOUNT_EMAIL", "owner@example.com")
}

func TestRequireAuth(t *testing.T) {
	setAuthEnv(t)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, ok := GetUserEmailFromContext(r.Context())
		if !ok {
			t.Error("Expected user email in context")
			return
		}
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(email))
		if err != nil {
			t.Errorf("Failed to write response: %v", err)
			return
		}
	})

	authHandler := RequireAuth(handler)

	t.Run("allows request with valid Bearer token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer valid_token_12345")

		rr := httptest.NewRecorder()
		authHandler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", rr.Code)
		}
		if rr.Body.String() != "owner@example.com" {
			t.Errorf("Expected owner email in response, got %q", rr.Body.String())
		}
	})

	t.Run("allows request with valid token query parameter", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/delete/42?token=valid_token_12345", nil)

		rr := httptest.NewRecorder()
		authHandler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", rr.Code)
		}
		if rr.Body.String() != "owner@example.com" {
			t.Errorf("Expected owner email in response, got %q", rr.Body.String())
		}
	})

	t.Run("rejects request with wrong token query parameter", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/delete/42?token=wrong_token", nil)

		rr := httptest.NewRecorder()
		authHandler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", rr.Code)
		}
	})

	t.Run("header takes precedence over query parameter", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test?token=valid_token_12345", nil)
		req.Header.Set("Authorization", "Bearer wrong_token")

		rr := httptest.NewRecorder()
		authHandler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", rr.Code)
		}
	})

	t.Run("rejects request with wrong token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer wrong_token")

		rr := httptest.NewRecorder()
		authHandler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", rr.Code)
		}
	})

	t.Run("rejects request without Authorization header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)

		rr := httptest.NewRecorder()
		authHandler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", rr.Code)
		}
	})

	t.Run("rejects request with invalid Authorization format", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "InvalidFormat")

		rr := httptest.NewRecorder()
		authHandler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", rr.Code)
		}
	})

	t.Run("rejects request with wrong auth scheme", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Basic valid_token_12345")

		rr := httptest.NewRecorder()
		authHandler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", rr.Code)
		}
	})

	t.Run("rejects empty token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer ")

		rr := httptest.NewRecorder()
		authHandler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", rr.Code)
		}
	})
}

func TestGetUserEmailFromContext(t *testing.T) {
	t.Run("returns false when not present", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)

		email, ok := GetUserEmailFromContext(req.Context())
		if ok {
			t.Error("Expected ok to be false")
		}
		if email != "" {
			t.Error("Expected empty email")
		}
	})
}

func TestValidateToken(t *testing.T) {
	t.Run("returns configured owner email for the right token", func(t *testing.T) {
		setAuthEnv(t)

		email, err := ValidateToken("valid_token_12345")
		if err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
		if email != "owner@example.com" {
			t.Errorf("Expected owner@example.com, got %q", email)
		}
	})

	t.Run("fails when no token is configured", func(t *testing.T) {
		t.Setenv("MAILPILOT_API_TOKEN", "")

		if _, err := ValidateToken("anything"); err == nil {
			t.Error("Expected error when MAILPILOT_API_TOKEN is unset")
		}
	})

	t.Run("fails when the owner email is not configured", func(t *testing.T) {
		t.Setenv("MAILPILOT_API_TOKEN", "valid_token_12345")
		t.Setenv("MAILPILOT_ACCOUNT_EMAIL", "")

		if _, err := ValidateToken("valid_token_12345"); err == nil {
			t.Error("Expected error when MAILPILOT_ACCOUNT_EMAIL is unset")
		}
	})
}
