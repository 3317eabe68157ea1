package server

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/leapstack-labs/sqlsandbox/internal/sandbox"
)

// ErrTooManySessions is returned by Registry.Create when the cap is reached.
var ErrTooManySessions = errors.New("too many open sessions")

// SessionFactory builds a new, unopened sandbox session.
type SessionFactory func() *sandbox.Session

type entry struct {
	session  *sandbox.Session
	lastUsed time.Time
}

// Registry keeps the sandbox sessions of the HTTP host by id.
type Registry struct {
	newSession SessionFactory
	max        int
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewRegistry creates an empty registry. max <= 0 means no cap.
func NewRegistry(newSession SessionFactory, max int, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		newSession: newSession,
		max:        max,
		logger:     logger,
		now:        time.Now,
		sessions:   make(map[string]*entry),
	}
}

// Create registers a new session. The session is not opened.
func (r *Registry) Create() (*sandbox.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.max > 0 && len(r.sessions) >= r.max {
		return nil, ErrTooManySessions
	}
	s := r.newSession()
	r.sessions[s.ID()] = &entry{session: s, lastUsed: r.now()}
	r.logger.Debug("session created", "session", s.ID(), "open", len(r.sessions))
	return s, nil
}

// Get returns the session with id and marks it used.
func (r *Registry) Get(id string) (*sandbox.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.session, true
}

// Has reports whether id is registered without marking it used.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	return ok
}

// Remove closes and forgets the session with id.
func (r *Registry) Remove(ctx context.Context, id string) bool {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	e.session.Close(ctx)
	return true
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes every session idle for longer than idle and returns their
// ids in sorted order.
func (r *Registry) Sweep(ctx context.Context, idle time.Duration) []string {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var stale []*entry
	for id, e := range r.sessions {
		if e.lastUsed.Before(cutoff) {
			stale = append(stale, e)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	ids := make([]string, 0, len(stale))
	for _, e := range stale {
		e.session.Close(ctx)
		ids = append(ids, e.session.ID())
	}
	sort.Strings(ids)
	if len(ids) > 0 {
		r.logger.Info("closed idle sessions", "count", len(ids))
	}
	return ids
}

// CloseAll closes every session.
func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range all {
		e.session.Close(ctx)
	}
}
