// Package token issues and verifies the signed session tokens that bind an
// identity to an expiry. Tokens are HS256 JWTs signed with a process-wide
// secret fixed at startup; verification is a pure function of the token and
// the secret.
package token

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails verification. Callers
// must not be able to distinguish malformed, tampered and expired tokens;
// the internal cause is logged for diagnostics only.
var ErrInvalidToken = errors.New("token: invalid or expired token")

// Service signs and verifies session tokens with a fixed secret.
type Service struct {
	secret []byte
	ttl    time.Duration
}

// NewService creates a token service. The secret must be non-empty; ttl is
// the validity duration applied by Issue.
func NewService(secret []byte, ttl time.Duration) (*Service, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: empty signing secret")
	}
	return &Service{secret: secret, ttl: ttl}, nil
}

// TTL returns the validity duration applied to issued tokens.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue creates a signed token for the given subject, valid for the service's
// configured TTL.
func (s *Service) Issue(subject string) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})

	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token: signing failed: %w", err)
	}
	return signed, nil
}

// Verify checks the token's signature and expiry and returns the subject.
// All failures collapse into ErrInvalidToken.
func (s *Service) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		log.Printf("token: verification failed: %v", err)
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		log.Printf("token: verification failed: empty subject")
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
