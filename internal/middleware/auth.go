// Package middleware provides the HTTP middleware chain for the API.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sudoku-arena/arena-api/internal/app/services/auth"
	"github.com/sudoku-arena/arena-api/pkg/logger"
)

type contextKey string

const userIDKey contextKey = "user_id"

// AuthMiddleware validates bearer tokens and stores the caller's identity in
// the request context.
type AuthMiddleware struct {
	tokens           *auth.TokenManager
	log              *logger.Logger
	skipPaths        map[string]bool
	optionalPrefixes []string
}

// NewAuthMiddleware creates an authentication middleware. skipPaths bypass
// token handling entirely; optionalPrefixes accept anonymous requests but
// still validate a token when one is presented.
func NewAuthMiddleware(tokens *auth.TokenManager, log *logger.Logger, skipPaths, optionalPrefixes []string) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth-middleware")
	}
	skip := make(map[string]bool, len(skipPaths))
	for _, path := range skipPaths {
		skip[path] = true
	}
	return &AuthMiddleware{
		tokens:           tokens,
		log:              log,
		skipPaths:        skip,
		optionalPrefixes: optionalPrefixes,
	}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		optional := m.isOptional(r.URL.Path)
		header := r.Header.Get("Authorization")
		if header == "" {
			if optional {
				next.ServeHTTP(w, r)
				return
			}
			m.unauthorized(w, "missing Authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.unauthorized(w, "invalid Authorization header format")
			return
		}

		claims, err := m.tokens.Parse(parts[1], auth.TokenTypeAccess)
		if err != nil {
			m.log.WithError(err).
				WithField("path", r.URL.Path).
				Warn("token validation failed")
			m.unauthorized(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) isOptional(path string) bool {
	for _, prefix := range m.optionalPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (m *AuthMiddleware) unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

// GetUserID extracts the authenticated user ID from the context. Empty for
// anonymous requests.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// WithUserID returns a context carrying the given user ID. Used by tests and
// the WebSocket upgrade path.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// RequireUserID rejects requests that did not authenticate.
func RequireUserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "authentication required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
