package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/sudoku-arena/arena-api/internal/app/domain/user"
	"github.com/sudoku-arena/arena-api/internal/app/storage"
	"github.com/sudoku-arena/arena-api/pkg/logger"
)

// Service manages user profiles.
type Service struct {
	store storage.UserStore
	log   *logger.Logger
}

// New creates a configured users service.
func New(store storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{store: store, log: log}
}

// Get fetches a user by ID.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.store.GetUser(ctx, id)
}

// Update applies partial profile changes. Nil fields are left untouched.
func (s *Service) Update(ctx context.Context, id string, username, password *string) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	if username != nil {
		u.Username = strings.TrimSpace(*username)
	}
	if password != nil {
		if len(*password) < 8 {
			return user.User{}, fmt.Errorf("password must be at least 8 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
		if err != nil {
			return user.User{}, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = string(hash)
	}

	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", id).Info("user profile updated")
	return updated, nil
}

// EnsureSuperuser creates a staff account at startup when one does not exist.
// Called from the server entrypoint with credentials from the environment.
func (s *Service) EnsureSuperuser(ctx context.Context, email, password string) (user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return user.User{}, fmt.Errorf("superuser email is required")
	}
	if len(password) < 8 {
		return user.User{}, fmt.Errorf("superuser password must be at least 8 characters")
	}

	existing, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return user.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.store.CreateUser(ctx, user.User{
		Email:        email,
		Username:     "admin",
		PasswordHash: string(hash),
		IsActive:     true,
		IsStaff:      true,
	})
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", created.ID).Info("superuser created")
	return created, nil
}
