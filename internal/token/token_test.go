package token

import (
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T, ttl time.Duration) *Service {
	t.Helper()
	s, err := NewService([]byte("test-secret"), ttl)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return s
}

func TestIssueAndVerify(t *testing.T) {
	s := newTestService(t, time.Hour)

	tok, err := s.Issue("bob")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	subject, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if subject != "bob" {
		t.Errorf("expected subject bob, got %q", subject)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	s := newTestService(t, -time.Minute)

	tok, err := s.Issue("bob")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := s.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyTamperedToken(t *testing.T) {
	s := newTestService(t, time.Hour)
	other := newTestService(t, time.Hour)
	otherTok, err := other.Issue("mallory")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Wrong secret and garbage both fail uniformly.
	cases := map[string]string{
		"wrong secret": otherTok,
		"garbage":      "not.a.token",
		"empty":        "",
	}
	for name, tok := range cases {
		if _, err := s.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestNewServiceRejectsEmptySecret(t *testing.T) {
	if _, err := NewService(nil, time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

// Verify tests run the secret through the exact same service pair, so a
// service must never verify a token signed by a different secret even if the
// claims are otherwise valid.
func TestVerifyOtherSecret(t *testing.T) {
	a := newTestService(t, time.Hour)
	b, err := NewService([]byte("different-secret"), time.Hour)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	tok, err := a.Issue("bob")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := b.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken across secrets, got %v", err)
	}
}
