package driven

import (
	"context"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
)

// SessionStore persists login sessions. Every lookup returns
// domain.ErrSessionNotFound for a missing session; stores that support TTLs
// drop a session once ExpiresAt passes.
type SessionStore interface {
	Save(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)

	// GetByToken finds the session an access token was issued for.
	GetByToken(ctx context.Context, token string) (*domain.Session, error)

	// GetByRefreshToken finds the session a refresh token rotates.
	GetByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error)

	// Delete is a no-op for an unknown ID.
	Delete(ctx context.Context, id string) error

	// DeleteByUser ends every session of a user.
	DeleteByUser(ctx context.Context, userID string) error
}
