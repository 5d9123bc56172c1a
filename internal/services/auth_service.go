package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ledgerd/internal/auth"
	"ledgerd/internal/core"
)

// UserRepository is the slice of storage the auth service needs.
type UserRepository interface {
	CreateUser(ctx context.Context, u core.User) error
	GetUserByEmail(ctx context.Context, email string) (*core.User, error)
	GetUserByID(ctx context.Context, id string) (*core.User, error)
}

// AuthService registers users, checks credentials and issues bearer tokens.
type AuthService struct {
	users  UserRepository
	tokens *auth.TokenIssuer
	nowFn  func() time.Time
}

func NewAuthService(users UserRepository, tokens *auth.TokenIssuer) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		nowFn:  time.Now,
	}
}

// Register creates a user and returns a token identifying them. Fails with
// core.ErrEmailTaken on duplicate email and field errors on bad input.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (string, *core.User, error) {
	if len(password) < 6 {
		return "", nil, core.ErrPasswordTooShort
	}

	now := s.nowFn()
	user := core.User{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(name),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := user.Validate(); err != nil {
		return "", nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash

	// The unique index on email is the backstop for concurrent registrations.
	if err := s.users.CreateUser(ctx, user); err != nil {
		return "", nil, err
	}

	token, err := s.tokens.IssueToken(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}

	slog.InfoContext(ctx, "User registered", "user_id", user.ID)
	return token, &user, nil
}

// Login verifies credentials and returns a fresh token. A missing user and a
// wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *core.User, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return "", nil, core.ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("lookup user: %w", err)
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return "", nil, core.ErrInvalidCredentials
	}

	token, err := s.tokens.IssueToken(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}

	slog.InfoContext(ctx, "User logged in", "user_id", user.ID)
	return token, user, nil
}

// GetUser returns the user identified by a verified token subject.
func (s *AuthService) GetUser(ctx context.Context, id string) (*core.User, error) {
	return s.users.GetUserByID(ctx, id)
}
