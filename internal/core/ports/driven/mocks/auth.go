package mocks

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

var _ driven.AuthAdapter = (*MockAuthAdapter)(nil)

// MockAuthAdapter stores passwords as plain text and encodes tokens as
// base64 JSON claims, so tests can build a valid token for any identity
// without a signing key. Expiry is enforced like the JWT adapter does.
type MockAuthAdapter struct {
	mu     sync.Mutex
	issued []domain.TokenClaims

	// HashErr, when set, fails every HashPassword call.
	HashErr error
}

// NewMockAuthAdapter creates a new MockAuthAdapter
func NewMockAuthAdapter() *MockAuthAdapter {
	return &MockAuthAdapter{}
}

func (m *MockAuthAdapter) HashPassword(password string) (string, error) {
	if m.HashErr != nil {
		return "", m.HashErr
	}
	return password, nil
}

func (m *MockAuthAdapter) VerifyPassword(password, hash string) bool {
	return password == hash
}

func (m *MockAuthAdapter) GenerateToken(claims *domain.TokenClaims) (string, error) {
	data, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("encode claims: %w", err)
	}
	m.mu.Lock()
	m.issued = append(m.issued, *claims)
	m.mu.Unlock()
	return base64.StdEncoding.EncodeToString(data), nil
}

func (m *MockAuthAdapter) ParseToken(token string) (*domain.TokenClaims, error) {
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}
	var claims domain.TokenClaims
	if err := json.Unmarshal(data, &claims); err != nil {
		return nil, domain.ErrTokenInvalid
	}
	if claims.UserID == "" || claims.SessionID == "" {
		return nil, domain.ErrTokenInvalid
	}
	if claims.ExpiresAt != 0 && time.Now().Unix() > claims.ExpiresAt {
		return nil, domain.ErrTokenExpired
	}
	return &claims, nil
}

// Issued returns the claims of every token generated so far, oldest first.
func (m *MockAuthAdapter) Issued() []domain.TokenClaims {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TokenClaims(nil), m.issued...)
}
