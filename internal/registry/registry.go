// Package registry maintains the live, in-memory set of connected sessions.
// It is the sole authority on who is currently connected: the WebSocket layer
// admits and evicts sessions here, and the broadcast engine reads
// point-in-time snapshots for fan-out.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handle is the write side of a live connection. The registry owns the handle
// for the lifetime of its session; tests substitute fakes.
type Handle interface {
	WriteMessage(data []byte) error
}

// Session is one live connected client. ID, Identity, JoinedAt and the handle
// are fixed at admission; only the display name is mutable afterwards.
type Session struct {
	ID       string
	Identity string // authenticated subject, or the anonymous default
	JoinedAt time.Time

	handle Handle

	mu   sync.Mutex
	name string
}

// Name returns the session's current display name.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// setName swaps the display name and returns the previous one.
func (s *Session) setName(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.name
	s.name = name
	return old
}

// Send writes a frame to the session's connection handle.
func (s *Session) Send(data []byte) error {
	return s.handle.WriteMessage(data)
}

// Registry is a thread-safe set of live sessions keyed by session ID. All
// mutating operations, Snapshot and Count are mutually exclusive, so the
// counts returned by Admit and Evict are exact at the instant of the change.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// New creates an empty Registry ready for use.
func New() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Admit registers a new session for the given connection handle and initial
// display name. It returns the session and the registry size immediately
// after admission, computed inside the same critical section.
func (r *Registry) Admit(handle Handle, identity, name string) (*Session, int) {
	s := &Session{
		ID:       uuid.New().String(),
		Identity: identity,
		JoinedAt: time.Now(),
		handle:   handle,
		name:     name,
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	count := len(r.sessions)
	r.mu.Unlock()

	return s, count
}

// Rename changes a session's display name and returns the previous name.
// Returns ok=false if the session is no longer registered.
func (r *Registry) Rename(id, name string) (old string, ok bool) {
	r.mu.RLock()
	s := r.sessions[id]
	r.mu.RUnlock()

	if s == nil {
		return "", false
	}
	return s.setName(name), true
}

// Evict removes a session. It is idempotent: evicting an absent ID is a
// no-op with ok=false, which absorbs duplicate disconnect signals. On
// success it returns the evicted session and the registry size immediately
// after eviction.
func (r *Registry) Evict(id string) (s *Session, count int, ok bool) {
	r.mu.Lock()
	s, ok = r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	count = len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return nil, count, false
	}
	return s, count, true
}

// Get returns the session for the given ID, or nil if not registered.
func (r *Registry) Get(id string) *Session {
	r.mu.RLock()
	s := r.sessions[id]
	r.mu.RUnlock()
	return s
}

// Snapshot returns a point-in-time copy of all live sessions. The returned
// slice is safe to iterate without holding the lock, so fan-out never races
// with a concurrent admit or evict.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()
	return out
}

// Count returns the current number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	n := len(r.sessions)
	r.mu.RUnlock()
	return n
}
