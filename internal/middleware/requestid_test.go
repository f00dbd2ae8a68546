package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sudoku-arena/arena-api/pkg/logger"
)

func TestRequestID_Generated(t *testing.T) {
	log := logger.NewDefault("requestid-test")
	log.SetOutput(io.Discard)
	m := NewRequestIDMiddleware(log)

	var seen string
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games", nil))

	if seen == "" {
		t.Fatal("request ID missing from context")
	}
	if rec.Header().Get("X-Request-ID") != seen {
		t.Fatalf("header %q does not match context %q", rec.Header().Get("X-Request-ID"), seen)
	}
}

func TestRequestID_Propagated(t *testing.T) {
	log := logger.NewDefault("requestid-test")
	log.SetOutput(io.Discard)
	m := NewRequestIDMiddleware(log)

	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/games", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	h.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") != "upstream-id" {
		t.Fatalf("upstream ID not preserved: %q", rec.Header().Get("X-Request-ID"))
	}
}
