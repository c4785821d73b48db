package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SessionStore = (*SessionStore)(nil)

const (
	sessionPrefix        = "sercha-sign:session:"
	sessionTokenPrefix   = "sercha-sign:session:token:"
	sessionRefreshPrefix = "sercha-sign:session:refresh:"
	sessionUserPrefix    = "sercha-sign:session:user:"

	// userSetTTL keeps a user's session set past any single session
	userSetTTL = 30 * 24 * time.Hour
)

// SessionStore implements driven.SessionStore using Redis.
// Sessions and their token indexes expire with the session.
type SessionStore struct {
	client *redis.Client
}

// NewSessionStore creates a new Redis-backed SessionStore
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

// Save stores a session with a TTL that ends at ExpiresAt. An already
// expired session is not stored.
func (s *SessionStore) Save(ctx context.Context, session *domain.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	userKey := sessionUserPrefix + session.UserID
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionPrefix+session.ID, data, ttl)
		pipe.Set(ctx, sessionTokenPrefix+session.Token, session.ID, ttl)
		if session.RefreshToken != "" {
			pipe.Set(ctx, sessionRefreshPrefix+session.RefreshToken, session.ID, ttl)
		}
		pipe.SAdd(ctx, userKey, session.ID)
		pipe.Expire(ctx, userKey, userSetTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID
func (s *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, sessionPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// GetByToken retrieves a session by token value
func (s *SessionStore) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	return s.getByIndex(ctx, sessionTokenPrefix+token)
}

// GetByRefreshToken retrieves a session by refresh token value
func (s *SessionStore) GetByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error) {
	if refreshToken == "" {
		return nil, domain.ErrSessionNotFound
	}
	return s.getByIndex(ctx, sessionRefreshPrefix+refreshToken)
}

// Delete deletes a session and its indexes. Unknown sessions are ignored.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	session, err := s.Get(ctx, id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.deleteSession(ctx, session)
}

// DeleteByUser deletes all sessions for a user (logout everywhere)
func (s *SessionStore) DeleteByUser(ctx context.Context, userID string) error {
	ids, err := s.client.SMembers(ctx, sessionUserPrefix+userID).Result()
	if err != nil {
		return fmt.Errorf("failed to get user sessions: %w", err)
	}

	var errs []error
	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.client.Del(ctx, sessionUserPrefix+userID).Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// getByIndex follows a token index to its session. An index that outlived
// its session reads as not found.
func (s *SessionStore) getByIndex(ctx context.Context, key string) (*domain.Session, error) {
	id, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session index: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *SessionStore) deleteSession(ctx context.Context, session *domain.Session) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionPrefix+session.ID, sessionTokenPrefix+session.Token)
		if session.RefreshToken != "" {
			pipe.Del(ctx, sessionRefreshPrefix+session.RefreshToken)
		}
		pipe.SRem(ctx, sessionUserPrefix+session.UserID, session.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
