package chatlog

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresLog stores chat records in the messages table.
type PostgresLog struct {
	db *sql.DB
}

// NewPostgresLog creates a message log backed by the given database handle.
func NewPostgresLog(db *sql.DB) *PostgresLog {
	return &PostgresLog{db: db}
}

// Append inserts one record.
func (l *PostgresLog) Append(ctx context.Context, rec Record) error {
	const query = `
		INSERT INTO messages (username, text, created_at)
		VALUES ($1, $2, $3)`

	_, err := l.db.ExecContext(ctx, query, rec.Username, rec.Text, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("chatlog: insert: %w", err)
	}
	return nil
}

// Recent returns the most recent records, oldest first. The newest rows are
// selected descending and reversed in memory so the page boundary stays on
// the most recent records.
func (l *PostgresLog) Recent(ctx context.Context, limit int) ([]Record, error) {
	limit = clampLimit(limit)

	const query = `
		SELECT username, text, created_at
		FROM messages
		ORDER BY created_at DESC, id DESC
		LIMIT $1`

	rows, err := l.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("chatlog: select recent: %w", err)
	}
	defer rows.Close()

	recs := make([]Record, 0, limit)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Username, &rec.Text, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("chatlog: scan: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatlog: rows: %w", err)
	}

	// Reverse newest-first into chronological order.
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}
