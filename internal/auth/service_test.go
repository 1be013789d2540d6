package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/parley/chat-relay/internal/token"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	tokens, err := token.NewService([]byte("test-secret"), time.Hour)
	if err != nil {
		t.Fatalf("token.NewService: %v", err)
	}
	return NewService(NewMemoryRepository(), tokens)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	tok, err := s.Register(ctx, "bob", "hunter2")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if tok == "" {
		t.Fatal("expected a token from Register")
	}

	tok, err = s.Login(ctx, "bob", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tok == "" {
		t.Fatal("expected a token from Login")
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if _, err := s.Register(ctx, "bob", "hunter2"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := s.Register(ctx, "bob", "other"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestLoginFailsUniformly(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if _, err := s.Register(ctx, "bob", "hunter2"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Wrong password and unknown user must be indistinguishable.
	cases := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "bob", "wrong"},
		{"unknown user", "nobody", "hunter2"},
		{"empty password", "bob", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Login(ctx, tc.username, tc.password); !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestRegisterRejectsEmptyInput(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	for _, tc := range [][2]string{{"", "pw"}, {"bob", ""}, {"   ", "pw"}} {
		if _, err := s.Register(ctx, tc[0], tc[1]); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Register(%q, %q): expected ErrInvalidInput, got %v", tc[0], tc[1], err)
		}
	}
}

func TestUsernameIsCaseSensitive(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if _, err := s.Register(ctx, "Bob", "pw"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	// "bob" is a different key than "Bob".
	if _, err := s.Register(ctx, "bob", "pw"); err != nil {
		t.Fatalf("expected lowercase bob to register separately, got %v", err)
	}
	if _, err := s.Login(ctx, "BOB", "pw"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown casing, got %v", err)
	}
}
