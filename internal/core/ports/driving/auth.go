package driving

import (
	"context"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
)

// AuthService is the identity provider for the document engine. Document,
// field and workflow operations never see credentials or tokens, only the
// Identity that ValidateToken resolves.
type AuthService interface {
	// Register creates an account and returns a signed-in session for it.
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.LoginResponse, error)
	Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error)

	// ValidateToken resolves a bearer token to its caller. The token must
	// verify and its session must still exist.
	ValidateToken(ctx context.Context, token string) (*domain.Identity, error)

	// RefreshToken rotates a session: the old access and refresh tokens
	// stop working.
	RefreshToken(ctx context.Context, req domain.RefreshRequest) (*domain.LoginResponse, error)

	Logout(ctx context.Context, token string) error
	LogoutAll(ctx context.Context, userID string) error
	Me(ctx context.Context, caller *domain.Identity) (*domain.UserSummary, error)
}
