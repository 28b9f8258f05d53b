package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"gitlabmr/server/internal/observability"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request tracing ID
	RequestIDKey ContextKey = "requestID"
)

// GetRequestID extracts request ID from context
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// generateRequestID creates a random 16-byte hex request ID
func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("fallback-%d", os.Getpid())
	}
	return hex.EncodeToString(b)
}

// Authorizer verifies bearer tokens on the MCP endpoint. With no secret
// configured every request passes (local single-user use); with
// MCP_AUTH_SECRET set, requests must carry a valid HS256 JWT.
type Authorizer struct {
	secret []byte
}

// NewAuthorizer reads MCP_AUTH_SECRET from the environment.
func NewAuthorizer() *Authorizer {
	secret := os.Getenv("MCP_AUTH_SECRET")
	if secret == "" {
		return &Authorizer{}
	}
	return &Authorizer{secret: []byte(secret)}
}

// Authorize is HTTP middleware that checks authorization and attaches a
// request ID for tracing.
func (a *Authorizer) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.secret) != 0 {
			if err := a.verifyBearer(r); err != nil {
				observability.Push(map[string]string{"type": "security", "level": "warn"}, map[string]any{
					"event":       "unauthorized_request",
					"remote_addr": r.RemoteAddr,
					"error":       err.Error(),
				})
				writeAuthError(w, err)
				return
			}
		}

		// Generate or propagate request ID for tracing
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authorizer) verifyBearer(r *http.Request) error {
	header := r.Header.Get("Authorization")
	if header == "" {
		return fmt.Errorf("missing bearer token")
	}
	raw := strings.TrimPrefix(header, "Bearer ")
	if raw == header {
		return fmt.Errorf("malformed authorization header")
	}

	_, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   "UNAUTHORIZED",
		"message": err.Error(),
	})
}
