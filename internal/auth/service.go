// Package auth implements the credential store and the register/login
// service that issues session tokens. Passwords are stored as bcrypt hashes;
// usernames are unique, case-sensitive keys.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/parley/chat-relay/internal/token"
)

var (
	// ErrUsernameTaken is returned by Register when the username exists.
	ErrUsernameTaken = errors.New("auth: username already taken")

	// ErrUnauthorized is returned by Login for a bad username or password.
	// The two cases are deliberately indistinguishable to the caller.
	ErrUnauthorized = errors.New("auth: invalid credentials")

	// ErrInvalidInput is returned for empty or malformed credentials.
	ErrInvalidInput = errors.New("auth: username and password are required")
)

// Identity is one stored credential record.
type Identity struct {
	Username     string
	PasswordHash string
}

// Repository persists identities. ErrUsernameTaken and a nil-identity
// not-found result are part of the contract.
type Repository interface {
	// Create inserts a new identity; returns ErrUsernameTaken on conflict.
	Create(ctx context.Context, ident Identity) error

	// FindByUsername returns the identity, or nil if it does not exist.
	FindByUsername(ctx context.Context, username string) (*Identity, error)
}

// Service handles registration and login and issues session tokens.
type Service struct {
	repo   Repository
	tokens *token.Service
}

// NewService creates an auth service over the given repository and token
// service.
func NewService(repo Repository, tokens *token.Service) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Register creates a new identity and returns a session token for it.
func (s *Service) Register(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}

	err = s.repo.Create(ctx, Identity{Username: username, PasswordHash: string(hash)})
	if err != nil {
		return "", err
	}

	return s.tokens.Issue(username)
}

// Login verifies the credentials and returns a session token. Unknown
// usernames and wrong passwords both surface as ErrUnauthorized.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", ErrUnauthorized
	}

	ident, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("auth: lookup: %w", err)
	}
	if ident == nil {
		return "", ErrUnauthorized
	}

	if bcrypt.CompareHashAndPassword([]byte(ident.PasswordHash), []byte(password)) != nil {
		return "", ErrUnauthorized
	}

	return s.tokens.Issue(username)
}
