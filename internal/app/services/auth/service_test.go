package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sudoku-arena/arena-api/internal/app/cache"
	"github.com/sudoku-arena/arena-api/internal/app/storage/memory"
	"github.com/sudoku-arena/arena-api/pkg/logger"
)

const testSecret = "unit-test-secret-0123456789"

func newTestService(t *testing.T) *Service {
	t.Helper()
	tokens, err := NewTokenManager(testSecret, time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	log := logger.NewDefault("auth-test")
	log.SetOutput(io.Discard)
	return New(memory.New(), tokens, cache.NewMemory(), log)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	u, pair, err := svc.Register(ctx, "Player@Example.com", "supersecret", "player")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Email != "player@example.com" {
		t.Fatalf("email not normalized: %s", u.Email)
	}
	if pair.Access == "" || pair.Refresh == "" {
		t.Fatal("expected token pair")
	}
	if u.PasswordHash == "supersecret" {
		t.Fatal("password stored in clear")
	}

	if _, _, err := svc.Register(ctx, "player@example.com", "supersecret", ""); err == nil {
		t.Fatal("expected duplicate email rejection")
	}

	logged, pair2, err := svc.Login(ctx, "player@example.com", "supersecret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if logged.ID != u.ID || pair2.Access == "" {
		t.Fatalf("unexpected login result: %#v", logged)
	}

	if _, _, err := svc.Login(ctx, "player@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "ghost@example.com", "supersecret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "not-an-email", "supersecret", ""); err == nil {
		t.Fatal("expected email validation error")
	}
	if _, _, err := svc.Register(ctx, "a@b.com", "short", ""); err == nil {
		t.Fatal("expected password length error")
	}
}

func TestRefreshRotatesAndRevokes(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, pair, err := svc.Register(ctx, "p@example.com", "supersecret", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	pair2, err := svc.Refresh(ctx, pair.Refresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if pair2.Refresh == pair.Refresh {
		t.Fatal("refresh token not rotated")
	}

	// the consumed refresh token must be unusable
	if _, err := svc.Refresh(ctx, pair.Refresh); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
}

func TestLogoutBlacklistsRefreshToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, pair, err := svc.Register(ctx, "p@example.com", "supersecret", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := svc.Logout(ctx, pair.Refresh); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Refresh(ctx, pair.Refresh); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked after logout, got %v", err)
	}

	// access token stays valid until expiry
	if err := svc.Verify(ctx, pair.Access); err != nil {
		t.Fatalf("verify access: %v", err)
	}
}

func TestVerify_RejectsGarbageAndWrongType(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.Verify(ctx, "not-a-token"); err == nil {
		t.Fatal("expected parse error")
	}

	_, pair, err := svc.Register(ctx, "p@example.com", "supersecret", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	// an access token must not pass as a refresh token
	if err := svc.Logout(ctx, pair.Access); err == nil {
		t.Fatal("expected token type rejection")
	}
}

func TestGoogleLogin_CreatesUserOnFirstLogin(t *testing.T) {
	userinfo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer goog-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"sub":"g123","email":"G@Example.com","email_verified":true,"name":"Gamer"}`)
	}))
	defer userinfo.Close()

	svc := newTestService(t)
	verifier, err := NewGoogleVerifier("client-id", "client-secret", "http://localhost:3000/", nil)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	verifier.userinfoURL = userinfo.URL
	svc.WithGoogle(verifier)

	ctx := context.Background()
	u, pair, err := svc.GoogleLogin(ctx, "", "goog-token")
	if err != nil {
		t.Fatalf("google login: %v", err)
	}
	if u.Email != "g@example.com" || u.Username != "Gamer" {
		t.Fatalf("unexpected user: %#v", u)
	}
	if pair.Access == "" {
		t.Fatal("expected token pair")
	}

	// second login resolves to the same account
	again, _, err := svc.GoogleLogin(ctx, "", "goog-token")
	if err != nil {
		t.Fatalf("second google login: %v", err)
	}
	if again.ID != u.ID {
		t.Fatalf("expected same account, got %s and %s", u.ID, again.ID)
	}
}

func TestGoogleLogin_RejectsUnverifiedEmail(t *testing.T) {
	userinfo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"sub":"g1","email":"x@example.com","email_verified":false}`)
	}))
	defer userinfo.Close()

	svc := newTestService(t)
	verifier, err := NewGoogleVerifier("client-id", "client-secret", "", nil)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	verifier.userinfoURL = userinfo.URL
	svc.WithGoogle(verifier)

	if _, _, err := svc.GoogleLogin(context.Background(), "", "tok"); err == nil {
		t.Fatal("expected unverified email rejection")
	}
}
