package builder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/pestops-contracts/internal/gateway"
)

// Manager handles session creation, lookup and cleanup.
type Manager struct {
	gw          gateway.Gateway
	opts        Options
	idleTimeout time.Duration
	log         zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(gw gateway.Gateway, opts Options, idleTimeout time.Duration, log zerolog.Logger) *Manager {
	return &Manager{
		gw:          gw,
		opts:        opts.withDefaults(),
		idleTimeout: idleTimeout,
		log:         log,
		sessions:    make(map[string]*Session),
	}
}

// Create opens a session. Reference data is loaded before the session is
// usable; with a contractID the persisted contract is hydrated into it.
func (m *Manager) Create(ctx context.Context, owner uuid.UUID, contractID string) (*Session, error) {
	dropdowns, err := m.gw.FetchDropdowns(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dropdowns: %w", err)
	}

	// The contract is fetched before the session exists so a failed load
	// leaves nothing to cancel.
	var detail *gateway.ContractDetail
	if contractID != "" {
		detail, err = m.gw.FetchContract(ctx, contractID)
		if err != nil {
			return nil, fmt.Errorf("load contract %s: %w", contractID, err)
		}
	}

	s := NewSession(owner, m.gw, dropdowns.Clean(), m.opts, m.log)
	if detail != nil {
		s.Hydrate(detail)
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.log.Info().
		Str("session_id", s.ID()).
		Str("owner", owner.String()).
		Str("contract_id", contractID).
		Msg("builder session opened")
	return s, nil
}

// Get returns a live session. Idle sessions are discarded on access.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if m.idle(s) {
		m.Close(id)
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close discards a session without persisting anything.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup closes every idle session and returns how many were closed.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if m.idle(s) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	return len(expired)
}

// Run calls Cleanup every interval until ctx is done, then closes every
// remaining session.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case <-ticker.C:
			if n := m.Cleanup(); n > 0 {
				m.log.Info().Int("count", n).Msg("idle builder sessions closed")
			}
		}
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

func (m *Manager) idle(s *Session) bool {
	return m.idleTimeout > 0 && time.Since(s.LastActive()) > m.idleTimeout
}
