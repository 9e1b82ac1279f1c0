package http

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rmgops/rmg-console/internal/wizard"
)

// WizardSessions holds in-flight wizard drafts, keyed by session id. Drafts
// live only in memory: closing a session or restarting the service discards
// them, matching the no-partial-save lifecycle of the wizard.
type WizardSessions struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[uuid.UUID]*WizardSession
}

// WizardSession serializes access to one wizard. The wizard itself is not
// safe for concurrent use.
type WizardSession struct {
	ID       uuid.UUID
	Wizard   *wizard.Wizard
	mu       sync.Mutex
	lastUsed time.Time
}

func (s *WizardSession) Lock()   { s.mu.Lock() }
func (s *WizardSession) Unlock() { s.mu.Unlock() }

func NewWizardSessions(ttl time.Duration) *WizardSessions {
	return &WizardSessions{
		ttl:      ttl,
		sessions: make(map[uuid.UUID]*WizardSession),
	}
}

func (m *WizardSessions) Create(w *wizard.Wizard) *WizardSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()

	session := &WizardSession{
		ID:       uuid.New(),
		Wizard:   w,
		lastUsed: time.Now(),
	}
	m.sessions[session.ID] = session
	return session
}

func (m *WizardSessions) Get(id uuid.UUID) (*WizardSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()

	session, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	session.lastUsed = time.Now()
	return session, true
}

func (m *WizardSessions) Remove(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

func (m *WizardSessions) sweepLocked() {
	if m.ttl <= 0 {
		return
	}
	cutoff := time.Now().Add(-m.ttl)
	for id, session := range m.sessions {
		if session.lastUsed.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}
