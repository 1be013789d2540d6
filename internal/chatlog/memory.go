package chatlog

import (
	"context"
	"sync"
)

// MemoryLog is an in-memory Log used in tests and when the relay runs
// without a database. It keeps every appended record in order.
type MemoryLog struct {
	mu   sync.Mutex
	recs []Record
}

// NewMemoryLog creates an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Append stores the record in memory.
func (l *MemoryLog) Append(_ context.Context, rec Record) error {
	l.mu.Lock()
	l.recs = append(l.recs, rec)
	l.mu.Unlock()
	return nil
}

// Recent returns the last records in chronological order.
func (l *MemoryLog) Recent(_ context.Context, limit int) ([]Record, error) {
	limit = clampLimit(limit)

	l.mu.Lock()
	defer l.mu.Unlock()

	start := len(l.recs) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Record, len(l.recs)-start)
	copy(out, l.recs[start:])
	return out, nil
}
