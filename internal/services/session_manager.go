package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SessionManager keeps the live wizard sessions in memory
type SessionManager struct {
	mu          sync.Mutex
	sessions    map[string]*WizardSession
	deps        SessionDeps
	idleTimeout time.Duration
	logger      *logrus.Logger
}

// NewSessionManager creates a new session manager
func NewSessionManager(deps SessionDeps, idleTimeout time.Duration, logger *logrus.Logger) *SessionManager {
	if idleTimeout <= 0 {
		idleTimeout = 2 * time.Hour
	}
	return &SessionManager{
		sessions:    make(map[string]*WizardSession),
		deps:        deps,
		idleTimeout: idleTimeout,
		logger:      logger,
	}
}

// Get returns an existing session
func (m *SessionManager) Get(id string) (*WizardSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// GetOrCreate returns the session for id, creating it when unknown. Ids that are not
// UUIDs are replaced by a fresh one; created reports whether a new session was made.
func (m *SessionManager) GetOrCreate(id string) (session *WizardSession, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s, false
	}
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}

	s := NewWizardSession(id, m.deps)
	m.sessions[id] = s
	m.logger.WithField("wizard_session", id).Debug("Wizard session created")
	return s, true
}

// Count returns the number of live sessions
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// SweepIdle evicts sessions unused for longer than the idle timeout. Persisted drafts
// are left alone so the user finds them again on the next login.
func (m *SessionManager) SweepIdle(now time.Time) int {
	m.mu.Lock()
	candidates := make([]*WizardSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		candidates = append(candidates, s)
	}
	m.mu.Unlock()

	evicted := 0
	for _, s := range candidates {
		if now.Sub(s.LastSeen()) < m.idleTimeout {
			continue
		}
		m.mu.Lock()
		if current, ok := m.sessions[s.ID()]; ok && current == s {
			delete(m.sessions, s.ID())
			evicted++
		}
		m.mu.Unlock()
	}

	if evicted > 0 {
		m.logger.WithFields(logrus.Fields{
			"evicted":   evicted,
			"remaining": m.Count(),
		}).Info("Evicted idle wizard sessions")
	}
	return evicted
}
