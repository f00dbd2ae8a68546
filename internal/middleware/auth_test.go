package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sudoku-arena/arena-api/internal/app/domain/user"
	"github.com/sudoku-arena/arena-api/internal/app/services/auth"
	"github.com/sudoku-arena/arena-api/pkg/logger"
)

func newTestTokens(t *testing.T) *auth.TokenManager {
	t.Helper()
	tokens, err := auth.NewTokenManager("middleware-test-secret-123", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	return tokens
}

func newTestAuth(t *testing.T) (*AuthMiddleware, *auth.TokenManager) {
	t.Helper()
	tokens := newTestTokens(t)
	log := logger.NewDefault("middleware-test")
	log.SetOutput(io.Discard)
	m := NewAuthMiddleware(tokens, log,
		[]string{"/healthz", "/api/auth/login"},
		[]string{"/api/sudokus", "/ws/"},
	)
	return m, tokens
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetUserID(r.Context())))
	})
}

func TestAuthMiddleware_SkipPath(t *testing.T) {
	m, _ := newTestAuth(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	m.Handler(echoUser()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	m, _ := newTestAuth(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/games", nil)

	m.Handler(echoUser()).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddleware_OptionalPrefixAllowsAnonymous(t *testing.T) {
	m, _ := newTestAuth(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/sudokus", nil)

	m.Handler(echoUser()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "" {
		t.Fatalf("expected anonymous, got %q", rec.Body.String())
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	m, tokens := newTestAuth(t)
	pair, err := tokens.IssuePair(user.User{ID: "user-42", Email: "p@example.com"})
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/games", nil)
	req.Header.Set("Authorization", "Bearer "+pair.Access)

	m.Handler(echoUser()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "user-42" {
		t.Fatalf("user id not propagated: %q", rec.Body.String())
	}
}

func TestAuthMiddleware_RejectsRefreshToken(t *testing.T) {
	m, tokens := newTestAuth(t)
	pair, err := tokens.IssuePair(user.User{ID: "user-42", Email: "p@example.com"})
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/games", nil)
	req.Header.Set("Authorization", "Bearer "+pair.Refresh)

	m.Handler(echoUser()).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for refresh token, got %d", rec.Code)
	}
}

func TestAuthMiddleware_BadTokenOnOptionalPath(t *testing.T) {
	m, _ := newTestAuth(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/sudokus", nil)
	req.Header.Set("Authorization", "Bearer garbage")

	m.Handler(echoUser()).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}
}

func TestRequireUserID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/games", nil)
	RequireUserID(echoUser()).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/games", nil)
	req = req.WithContext(WithUserID(req.Context(), "user-1"))
	RequireUserID(echoUser()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "user-1" {
		t.Fatalf("expected pass-through, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestRateLimiter(t *testing.T) {
	log := logger.NewDefault("ratelimit-test")
	log.SetOutput(io.Discard)
	rl := NewRateLimiter(1, 2, log)

	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/games", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("burst requests should pass: %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %v", codes)
	}

	// a different client has its own budget
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/games", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("independent client throttled: %d", rec.Code)
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	m := NewCORSMiddleware([]string{"https://arena.example.com"})
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/games", nil)
	req.Header.Set("Origin", "https://arena.example.com")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://arena.example.com" {
		t.Fatalf("origin header missing: %v", rec.Header())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/games", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("disallowed origin was echoed")
	}
}
