package chat

import (
	"log"
	"sync"
)

// Manager ties session lifecycle to identity: one live Session per
// authenticated user, created on first use and closed when the identity is
// cleared. Without an attached identity there is no session and every chat
// operation stops at the boundary.
type Manager struct {
	store     TranscriptStore
	completer Completer
	fallback  string

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager builds the session manager.
func NewManager(store TranscriptStore, completer Completer, fallback string) *Manager {
	return &Manager{
		store:     store,
		completer: completer,
		fallback:  fallback,
		sessions:  make(map[string]*Session),
	}
}

// Attach returns the user's session, creating it on first use.
func (m *Manager) Attach(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		return s
	}

	s := NewSession(userID, m.store, m.completer, m.fallback)
	m.sessions[userID] = s
	log.Printf("[session] attached user=%s", userID)
	return s
}

// Detach closes and removes the user's session. Called on logout; a missing
// session is a no-op.
func (m *Manager) Detach(userID string) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if ok {
		s.Close()
		log.Printf("[session] detached user=%s", userID)
	}
}

// CloseAll tears down every session, for shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
