package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

var _ driven.SessionStore = (*MockSessionStore)(nil)

// MockSessionStore keeps sessions keyed by ID. Token lookups scan, which is
// fine at test sizes and keeps a single source of truth after rotation.
type MockSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

// NewMockSessionStore creates a new MockSessionStore
func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{sessions: make(map[string]domain.Session)}
}

func (m *MockSessionStore) Save(_ context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = *session
	return nil
}

func (m *MockSessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	return m.find(func(s *domain.Session) bool { return s.ID == id })
}

func (m *MockSessionStore) GetByToken(_ context.Context, token string) (*domain.Session, error) {
	return m.find(func(s *domain.Session) bool { return s.Token == token })
}

func (m *MockSessionStore) GetByRefreshToken(_ context.Context, refreshToken string) (*domain.Session, error) {
	if refreshToken == "" {
		return nil, domain.ErrSessionNotFound
	}
	return m.find(func(s *domain.Session) bool { return s.RefreshToken == refreshToken })
}

func (m *MockSessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MockSessionStore) DeleteByUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

// Count returns the number of stored sessions.
func (m *MockSessionStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MockSessionStore) find(match func(*domain.Session) bool) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if match(&s) {
			out := s
			return &out, nil
		}
	}
	return nil, domain.ErrSessionNotFound
}
