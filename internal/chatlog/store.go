// Package chatlog provides the append-only persisted message log. Records
// are immutable once written; the only read is "most recent N, oldest first".
package chatlog

import (
	"context"
	"time"
)

// DefaultRecentLimit is the history page size used when the caller does not
// supply one.
const DefaultRecentLimit = 50

// MaxRecentLimit caps caller-supplied history page sizes.
const MaxRecentLimit = 500

// Record is one persisted chat message.
type Record struct {
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is the append-only message store. Append durability is best-effort
// from the broadcast engine's point of view: an append failure is logged and
// the broadcast still proceeds.
type Log interface {
	// Append persists one record.
	Append(ctx context.Context, rec Record) error

	// Recent returns up to limit of the most recently appended records in
	// chronological order (oldest first). limit <= 0 selects
	// DefaultRecentLimit.
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// clampLimit normalises a caller-supplied limit into [1, MaxRecentLimit].
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		return MaxRecentLimit
	}
	return limit
}
