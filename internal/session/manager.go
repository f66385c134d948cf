package session

import (
	"context"
	"sync"
	"time"

	"diaspora-map/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Lifecycle is told when sessions open and close.
type Lifecycle interface {
	SessionOpened()
	SessionClosed()
}

type nopLifecycle struct{}

func (nopLifecycle) SessionOpened() {}
func (nopLifecycle) SessionClosed() {}

type ManagerOption func(*Manager)

func WithLifecycle(l Lifecycle) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.lifecycle = l
		}
	}
}

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// Manager keeps the open sessions of all browser tabs.
type Manager struct {
	deps      Deps
	ttl       time.Duration
	logr      *zap.Logger
	lifecycle Lifecycle
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

func NewManager(deps Deps, ttl time.Duration, opts ...ManagerOption) *Manager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	m := &Manager{
		deps:      deps,
		ttl:       ttl,
		logr:      deps.Logger,
		lifecycle: nopLifecycle{},
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create opens a session for a page load with the given query string.
// Previously failed fetches are forgotten, as on a fresh page load.
func (m *Manager) Create(rawQuery string) (*Session, error) {
	q, err := parseQuery(rawQuery)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	m.deps.Data.ClearErrors()
	s := New(uuid.NewString(), m.deps, Options{Query: q})
	m.sessions[s.ID()] = s
	count := len(m.sessions)
	m.mu.Unlock()

	m.lifecycle.SessionOpened()
	m.logr.Info("session opened", zap.String("session", s.ID()), zap.Int("open", count))
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove closes and forgets the session.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	m.closeSession(s, "removed")
	return nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than the TTL and returns how many it closed.
func (m *Manager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.ttl)

	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		m.closeSession(s, "expired")
	}
	return len(expired)
}

// Run sweeps expired sessions until ctx is done.
func (m *Manager) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logr.Info("expired idle sessions", zap.Int("count", n))
			}
		}
	}
}

// Render builds a one-off view for a shareable link without keeping a session.
func (m *Manager) Render(ctx context.Context, rawQuery string) (models.MapView, error) {
	q, err := parseQuery(rawQuery)
	if err != nil {
		return models.MapView{}, err
	}
	search := q.Get("search")
	q.Del("search")

	s := New(uuid.NewString(), m.deps, Options{Query: q, Search: search})
	defer s.Close()

	if err := s.WaitIdle(ctx); err != nil {
		return models.MapView{}, err
	}
	return s.View(ctx)
}

// Close closes every session. Create fails afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		m.closeSession(s, "shutdown")
	}
}

func (m *Manager) closeSession(s *Session, reason string) {
	s.Close()
	m.lifecycle.SessionClosed()
	m.logr.Info("session closed", zap.String("session", s.ID()), zap.String("reason", reason))
}
