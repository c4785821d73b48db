package driven

import "github.com/custodia-labs/sercha-sign/internal/core/domain"

// PasswordHasher turns account passwords into stored hashes.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	VerifyPassword(password, hash string) bool
}

// TokenSigner issues and verifies the bearer tokens callers present on
// every document request. ParseToken wraps domain.ErrTokenExpired for a
// token past its exp claim and domain.ErrTokenInvalid for anything else.
type TokenSigner interface {
	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)
}

// AuthAdapter is the credential crypto the auth service needs. Session
// persistence lives behind SessionStore.
type AuthAdapter interface {
	PasswordHasher
	TokenSigner
}
