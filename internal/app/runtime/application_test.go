package runtime

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	app "github.com/sudoku-arena/arena-api/internal/app"
	authsvc "github.com/sudoku-arena/arena-api/internal/app/services/auth"
	"github.com/sudoku-arena/arena-api/internal/app/services/health"
	"github.com/sudoku-arena/arena-api/internal/config"
	"github.com/sudoku-arena/arena-api/pkg/logger"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()

	log := logger.NewDefault("runtime-test")
	log.SetOutput(io.Discard)

	tokens, err := authsvc.NewTokenManager("runtime-test-secret-123", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	application, err := app.New(app.Options{Tokens: tokens}, log)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	cfg := &config.Config{}
	cfg.RateLimit.PerSecond = 100
	cfg.RateLimit.Burst = 100
	cfg.CORS.Origins = []string{"*"}

	return buildHTTPHandler(cfg, application, tokens, log, nil)
}

func TestHandlerChain_PublicPaths(t *testing.T) {
	h := newTestHandler(t)

	for _, path := range []string{"/healthz", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestHandlerChain_ProtectedPathRequiresToken(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandlerChain_Preflight(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/games", nil)
	req.Header.Set("Origin", "https://arena.example.com")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rec.Code)
	}
}

func TestDatabaseHealthCheck_ReportsDownDatabase(t *testing.T) {
	log := logger.NewDefault("runtime-test")
	log.SetOutput(io.Discard)

	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	db := sqlx.NewDb(mockDB, "postgres")

	tokens, err := authsvc.NewTokenManager("runtime-test-secret-123", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	application, err := app.New(app.Options{Tokens: tokens}, log)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	application.Health.Register("database", health.PingFunc(db.PingContext))

	report := application.Health.Check(context.Background())
	if report.Healthy() {
		t.Fatal("dead database reported healthy")
	}
	if report.Checks["database"].Status != "down" {
		t.Fatalf("unexpected database check: %+v", report.Checks["database"])
	}
}

func TestOpenDatabase_BoundedRetry(t *testing.T) {
	log := logger.NewDefault("runtime-test")
	log.SetOutput(io.Discard)

	cfg := config.DatabaseConfig{
		Host:            "127.0.0.1",
		Port:            1,
		User:            "postgres",
		Name:            "arena_test",
		SSLMode:         "disable",
		ConnectAttempts: 2,
		ConnectBackoff:  10 * time.Millisecond,
	}

	start := time.Now()
	if _, err := openDatabase(cfg, log); err == nil {
		t.Fatal("expected connection failure")
	}
	if time.Since(start) > 10*time.Second {
		t.Fatal("retry loop did not stay bounded")
	}
}
