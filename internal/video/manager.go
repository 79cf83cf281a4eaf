package video

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xelth-com/spectraq/internal/inspection"
)

// ErrSessionNotFound is returned for unknown session ids
var ErrSessionNotFound = errors.New("video session not found")

// keepFinished bounds how many ended sessions stay queryable
const keepFinished = 20

// Manager owns the sampling sessions. Only one session samples at a time.
type Manager struct {
	ctx      context.Context
	interval time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	order    []string
	active   *Session
}

// NewManager creates a manager whose sessions run on ctx
func NewManager(ctx context.Context, interval time.Duration) *Manager {
	return &Manager{
		ctx:      ctx,
		interval: interval,
		sessions: make(map[string]*Session),
	}
}

// Start stops the running session, if any, and starts sampling source
func (m *Manager) Start(kind inspection.Type, source FrameSource, handle FrameHandler) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		m.active.Stop()
	}

	s := NewSession(uuid.New().String(), kind, source, handle, m.interval)
	m.sessions[s.ID()] = s
	m.order = append(m.order, s.ID())
	m.active = s
	m.prune()

	s.Start(m.ctx)
	return s
}

// prune drops the oldest ended sessions beyond keepFinished
func (m *Manager) prune() {
	for len(m.order) > keepFinished+1 {
		oldest := m.sessions[m.order[0]]
		if oldest == m.active {
			return
		}
		delete(m.sessions, m.order[0])
		m.order = m.order[1:]
	}
}

// Get returns a session by id
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Stop stops a session by id
func (m *Manager) Stop(id string) (*Session, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	s.Stop()
	return s, nil
}

// Active returns the session that is still sampling
func (m *Manager) Active() (*Session, bool) {
	m.mu.Lock()
	s := m.active
	m.mu.Unlock()
	if s == nil || !s.Running() {
		return nil, false
	}
	return s, true
}

// Shutdown stops every session and waits for in-flight frames until ctx expires
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		s.Stop()
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
