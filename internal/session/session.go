// Package session owns per-user state: every limiter, ledger, memory
// buffer, and screening session hangs off exactly one Session, and a
// Manager hands sessions out by ID or by external surface key.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumenclass/selcoach/internal/coach"
	"github.com/lumenclass/selcoach/internal/screening"
	"github.com/lumenclass/selcoach/internal/usage"
)

// Defaults are the generation settings a session starts with. Zero limit or
// price fields fall back to package defaults downstream.
type Defaults struct {
	Model       string
	Temperature float64
	MaxTokens   int
	UseCache    bool
	PerMinute   int
	PerHour     int
	Prices      usage.PriceTable
}

// Session is one user's working state. The mutex serializes all access: a
// session is shared between the HTTP API and chat surfaces, and the meter
// and screening engine are not internally synchronized.
type Session struct {
	ID        string
	CreatedAt time.Time
	Defaults  Defaults
	Meter     *coach.Meter
	Screening *screening.Session

	mu sync.Mutex
}

func newSession(d Defaults, now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		Defaults:  d,
		Meter:     coach.NewMeter(d.PerMinute, d.PerHour, d.Prices, now),
		Screening: screening.NewSession(),
	}
}

// Do runs fn with the session lock held. All reads and writes of Meter and
// Screening go through here.
func (s *Session) Do(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// Manager tracks live sessions. Surface keys let chat platforms address
// sessions by stable identity (e.g. "slack:U123") instead of UUID.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byKey    map[string]string
	defaults Defaults
	now      func() time.Time
}

// NewManager creates a Manager issuing sessions with the given defaults.
func NewManager(defaults Defaults) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		byKey:    make(map[string]string),
		defaults: defaults,
		now:      time.Now,
	}
}

// Create starts a new session.
func (m *Manager) Create() *Session {
	s := newSession(m.defaults, m.now())
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// ForKey returns the session bound to an external surface key, creating and
// binding one on first use.
func (m *Manager) ForKey(key string) *Session {
	m.mu.RLock()
	if id, ok := m.byKey[key]; ok {
		if s, ok := m.sessions[id]; ok {
			m.mu.RUnlock()
			return s
		}
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byKey[key]; ok {
		if s, ok := m.sessions[id]; ok {
			return s
		}
	}
	s := newSession(m.defaults, m.now())
	m.sessions[s.ID] = s
	m.byKey[key] = s.ID
	return s
}

// Remove drops a session and any surface key bound to it.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	for key, sid := range m.byKey {
		if sid == id {
			delete(m.byKey, key)
		}
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
