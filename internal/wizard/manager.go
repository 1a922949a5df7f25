package wizard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("wizard session not found")

// Manager holds independent sessions keyed by id and expires idle ones.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	ttl       time.Duration
	submitter LeadSubmitter
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// NewManager returns an empty Manager. A ttl of zero disables expiry.
func NewManager(submitter LeadSubmitter, logger *zap.Logger, ttl time.Duration) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions:  make(map[string]*Session),
		ttl:       ttl,
		submitter: submitter,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Create starts a new session.
func (m *Manager) Create() *Session {
	s := NewSession(m.newID(), m.submitter, m.logger)
	s.now = m.now
	s.touch()

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	return s
}

// Get returns the session for id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete drops the session for id, if any.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than the ttl and returns how many
// were removed.
func (m *Manager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if m.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := m.Sweep(); removed > 0 {
				m.logger.Debug("expired idle wizard sessions",
					zap.String("op", "wizard.Run"),
					zap.Int("removed", removed),
					zap.Int("remaining", m.Len()),
				)
			}
		}
	}
}
