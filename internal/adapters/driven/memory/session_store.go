package memory

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SessionStore = (*SessionStore)(nil)

// SessionStore implements driven.SessionStore in memory.
// Expired sessions are kept until deleted; the auth service checks expiry.
type SessionStore struct {
	db *DB
}

// NewSessionStore creates a new SessionStore
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// Save stores a session
func (s *SessionStore) Save(_ context.Context, session *domain.Session) error {
	txn := s.db.db.Txn(true)
	defer txn.Abort()

	sess := *session
	if err := txn.Insert(tblSessions, &sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	txn.Commit()
	return nil
}

// Get retrieves a session by ID
func (s *SessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	return s.first("id", id)
}

// GetByToken retrieves a session by token value
func (s *SessionStore) GetByToken(_ context.Context, token string) (*domain.Session, error) {
	return s.first("token", token)
}

// GetByRefreshToken retrieves a session by refresh token value
func (s *SessionStore) GetByRefreshToken(_ context.Context, refreshToken string) (*domain.Session, error) {
	if refreshToken == "" {
		return nil, domain.ErrSessionNotFound
	}
	return s.first("refresh_token", refreshToken)
}

// Delete deletes a session. Deleting an unknown session is not an error.
func (s *SessionStore) Delete(_ context.Context, id string) error {
	txn := s.db.db.Txn(true)
	defer txn.Abort()

	if _, err := txn.DeleteAll(tblSessions, "id", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	txn.Commit()
	return nil
}

// DeleteByUser deletes all sessions for a user
func (s *SessionStore) DeleteByUser(_ context.Context, userID string) error {
	txn := s.db.db.Txn(true)
	defer txn.Abort()

	if _, err := txn.DeleteAll(tblSessions, "user_id", userID); err != nil {
		return fmt.Errorf("delete sessions for %s: %w", userID, err)
	}
	txn.Commit()
	return nil
}

func (s *SessionStore) first(index, value string) (*domain.Session, error) {
	txn := s.db.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblSessions, index, value)
	if err != nil {
		return nil, fmt.Errorf("find session by %s: %w", index, err)
	}
	if raw == nil {
		return nil, domain.ErrSessionNotFound
	}
	sess := *raw.(*domain.Session)
	return &sess, nil
}
