package driven

import (
	"context"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
)

// UserStore persists accounts. Emails are unique ignoring case; Save
// returns domain.ErrAlreadyExists when another account holds the address.
// Lookups return domain.ErrNotFound for an unknown account.
type UserStore interface {
	Save(ctx context.Context, user *domain.User) error
	Get(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpdateLastLogin stamps the account with the current time.
	UpdateLastLogin(ctx context.Context, id string) error
}
