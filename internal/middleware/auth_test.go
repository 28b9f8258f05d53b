package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "tester",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func TestAuthorizeNoSecretPassesThrough(t *testing.T) {
	t.Setenv("MCP_AUTH_SECRET", "")
	a := NewAuthorizer()

	var gotRequestID string
	handler := a.Authorize(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequestID = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotRequestID == "" {
		t.Error("request ID missing from context")
	}
}

func TestAuthorizePropagatesRequestID(t *testing.T) {
	t.Setenv("MCP_AUTH_SECRET", "")
	a := NewAuthorizer()

	var gotRequestID string
	handler := a.Authorize(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequestID = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if gotRequestID != "upstream-id" {
		t.Errorf("request ID = %q, want upstream-id", gotRequestID)
	}
}

func TestAuthorizeRejectsMissingToken(t *testing.T) {
	t.Setenv("MCP_AUTH_SECRET", "s3cret")
	a := NewAuthorizer()

	handler := a.Authorize(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run for unauthorized request")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthorizeRejectsBadToken(t *testing.T) {
	t.Setenv("MCP_AUTH_SECRET", "s3cret")
	a := NewAuthorizer()

	handler := a.Authorize(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run for unauthorized request")
	}))

	tests := []struct {
		name   string
		header string
	}{
		{"malformed header", "Token abc"},
		{"garbage token", "Bearer not.a.jwt"},
		{"wrong secret", "Bearer " + signToken(t, "other-secret")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestAuthorizeAcceptsValidToken(t *testing.T) {
	t.Setenv("MCP_AUTH_SECRET", "s3cret")
	a := NewAuthorizer()

	called := false
	handler := a.Authorize(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "s3cret"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !called {
		t.Error("handler not reached with valid token")
	}
}
