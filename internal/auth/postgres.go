package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaches.
const uniqueViolation = "23505"

// PostgresRepository stores identities in the users table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repository backed by the given database
// handle.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new identity. A duplicate username surfaces as
// ErrUsernameTaken.
func (r *PostgresRepository) Create(ctx context.Context, ident Identity) error {
	const query = `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)`

	_, err := r.db.ExecContext(ctx, query, ident.Username, ident.PasswordHash)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrUsernameTaken
		}
		return fmt.Errorf("auth: insert user: %w", err)
	}
	return nil
}

// FindByUsername returns the identity, or nil if no row matches.
func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*Identity, error) {
	const query = `
		SELECT username, password_hash
		FROM users
		WHERE username = $1`

	var ident Identity
	err := r.db.QueryRowContext(ctx, query, username).Scan(&ident.Username, &ident.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("auth: select user: %w", err)
	}
	return &ident, nil
}
