package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sudoku-arena/arena-api/internal/app/cache"
	"github.com/sudoku-arena/arena-api/internal/app/domain/user"
	"github.com/sudoku-arena/arena-api/internal/app/storage"
	"github.com/sudoku-arena/arena-api/pkg/logger"
)

// ErrInvalidCredentials covers unknown emails and wrong passwords so the two
// cases are indistinguishable to a caller.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrTokenRevoked indicates a blacklisted refresh token.
var ErrTokenRevoked = errors.New("token has been revoked")

// ErrInactiveUser indicates a disabled account.
var ErrInactiveUser = errors.New("user account is inactive")

const minPasswordLength = 8

// Service handles registration, credential checks and the token lifecycle.
type Service struct {
	users     storage.UserStore
	tokens    *TokenManager
	blacklist cache.Cache
	google    *GoogleVerifier
	log       *logger.Logger
}

// New creates a configured auth service.
func New(users storage.UserStore, tokens *TokenManager, blacklist cache.Cache, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	if blacklist == nil {
		blacklist = cache.NewMemory()
	}
	return &Service{
		users:     users,
		tokens:    tokens,
		blacklist: blacklist,
		log:       log,
	}
}

// WithGoogle enables the Google social login flow.
func (s *Service) WithGoogle(verifier *GoogleVerifier) {
	s.google = verifier
}

// Register creates an account and returns it with a fresh token pair.
func (s *Service) Register(ctx context.Context, email, password, username string) (user.User, TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)

	if email == "" || !strings.Contains(email, "@") {
		return user.User{}, TokenPair{}, fmt.Errorf("a valid email is required")
	}
	if len(password) < minPasswordLength {
		return user.User{}, TokenPair{}, fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.CreateUser(ctx, user.User{
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return user.User{}, TokenPair{}, fmt.Errorf("email already registered")
		}
		return user.User{}, TokenPair{}, err
	}

	pair, err := s.tokens.IssuePair(created)
	if err != nil {
		return user.User{}, TokenPair{}, err
	}

	s.log.WithField("user_id", created.ID).Info("user registered")
	return created, pair, nil
}

// Login checks credentials and returns the user with a fresh token pair.
func (s *Service) Login(ctx context.Context, email, password string) (user.User, TokenPair, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, TokenPair{}, ErrInvalidCredentials
		}
		return user.User{}, TokenPair{}, err
	}
	if !u.IsActive {
		return user.User{}, TokenPair{}, ErrInactiveUser
	}
	if u.PasswordHash == "" {
		return user.User{}, TokenPair{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return user.User{}, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(u)
	if err != nil {
		return user.User{}, TokenPair{}, err
	}

	s.log.WithField("user_id", u.ID).Info("user logged in")
	return u, pair, nil
}

// Logout revokes the presented refresh token for the remainder of its
// lifetime.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.Parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		return err
	}
	return s.revoke(ctx, claims)
}

func (s *Service) revoke(ctx context.Context, claims *Claims) error {
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	if err := s.blacklist.Set(ctx, cache.BlacklistKey(claims.ID), "1", ttl); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	s.log.WithField("user_id", claims.UserID).Info("refresh token revoked")
	return nil
}

// Refresh rotates the refresh token: the old one is revoked and a new pair
// issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.Parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	if _, revoked, err := s.blacklist.Get(ctx, cache.BlacklistKey(claims.ID)); err != nil {
		return TokenPair{}, fmt.Errorf("check blacklist: %w", err)
	} else if revoked {
		return TokenPair{}, ErrTokenRevoked
	}

	u, err := s.users.GetUser(ctx, claims.UserID)
	if err != nil {
		return TokenPair{}, err
	}
	if !u.IsActive {
		return TokenPair{}, ErrInactiveUser
	}

	if err := s.revoke(ctx, claims); err != nil {
		return TokenPair{}, err
	}
	return s.tokens.IssuePair(u)
}

// Verify reports nil when the token parses, has a valid signature and has not
// expired.
func (s *Service) Verify(_ context.Context, token string) error {
	_, err := s.tokens.Parse(token, "")
	return err
}

// GoogleLogin exchanges a Google authorization code (or uses a bearer access
// token directly) for a local account, creating one on first login.
func (s *Service) GoogleLogin(ctx context.Context, code, accessToken string) (user.User, TokenPair, error) {
	if s.google == nil {
		return user.User{}, TokenPair{}, fmt.Errorf("google login is not configured")
	}

	profile, err := s.google.Verify(ctx, code, accessToken)
	if err != nil {
		return user.User{}, TokenPair{}, err
	}

	u, err := s.users.GetUserByEmail(ctx, profile.Email)
	if errors.Is(err, storage.ErrNotFound) {
		u, err = s.users.CreateUser(ctx, user.User{
			Email:    profile.Email,
			Username: profile.Name,
			IsActive: true,
		})
		if err == nil {
			s.log.WithField("user_id", u.ID).Info("user created via google login")
		}
	}
	if err != nil {
		return user.User{}, TokenPair{}, err
	}
	if !u.IsActive {
		return user.User{}, TokenPair{}, ErrInactiveUser
	}

	pair, err := s.tokens.IssuePair(u)
	if err != nil {
		return user.User{}, TokenPair{}, err
	}
	return u, pair, nil
}
