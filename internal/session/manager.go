package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/sounding-edit-service/internal/perturb"
	"github.com/couchcryptid/sounding-edit-service/internal/skewt"
)

// ErrNotFound is returned for unknown or closed session ids.
var ErrNotFound = errors.New("session: not found")

// Manager tracks the sessions of mounted diagrams. Each diagram creates its
// own session on mount and closes it on unmount; there is no shared
// process-wide diagram.
type Manager struct {
	engine *perturb.Engine
	clock  clockwork.Clock

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty manager. A nil clock uses real time.
func NewManager(engine *perturb.Engine, clock clockwork.Clock) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		engine:   engine,
		clock:    clock,
		sessions: make(map[string]*Session),
	}
}

// Create opens a session with its own chart geometry.
func (m *Manager) Create(cfg skewt.Config) (*Session, error) {
	tr, err := skewt.NewTransform(cfg)
	if err != nil {
		return nil, err
	}
	s := New(uuid.NewString(), tr, m.engine, m.clock)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s, nil
}

// Get looks a session up by id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Close tears a session down and forgets it.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Close()
	return nil
}

// CloseAll tears every session down.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
