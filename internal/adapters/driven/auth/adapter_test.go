package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
)

func testClaims(expiresIn time.Duration) *domain.TokenClaims {
	now := time.Now()
	return &domain.TokenClaims{
		UserID:    "user-123",
		Email:     "alice@example.com",
		Name:      "Alice",
		SessionID: "session-789",
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(expiresIn).Unix(),
	}
}

func TestNewAdapter(t *testing.T) {
	adapter := NewAdapter("test-secret")
	if string(adapter.jwtSecret) != "test-secret" {
		t.Error("expected jwt secret to be set")
	}
	if adapter.bcryptCost != bcrypt.DefaultCost {
		t.Errorf("expected default bcrypt cost, got %d", adapter.bcryptCost)
	}
}

func TestHashPassword(t *testing.T) {
	adapter := NewAdapterWithCost("secret", bcrypt.MinCost)

	hash, err := adapter.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	if hash == "correct horse" || !strings.HasPrefix(hash, "$2") {
		t.Errorf("expected a bcrypt hash, got %q", hash)
	}

	again, _ := adapter.HashPassword("correct horse")
	if hash == again {
		t.Error("expected different hashes for same password (due to salt)")
	}

	if _, err := adapter.HashPassword(strings.Repeat("x", 73)); err == nil {
		t.Error("expected error for a password longer than bcrypt accepts")
	}
}

func TestVerifyPassword(t *testing.T) {
	adapter := NewAdapterWithCost("secret", bcrypt.MinCost)
	hash, _ := adapter.HashPassword("correct horse")

	tests := []struct {
		name     string
		password string
		hash     string
		want     bool
	}{
		{"correct", "correct horse", hash, true},
		{"incorrect", "wrong horse", hash, false},
		{"empty", "", hash, false},
		{"invalid hash", "correct horse", "not-a-hash", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.VerifyPassword(tt.password, tt.hash); got != tt.want {
				t.Errorf("VerifyPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	adapter := NewAdapter("test-jwt-secret")
	claims := testClaims(time.Hour)

	token, err := adapter.GenerateToken(claims)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("expected a three part JWT, got %q", token)
	}

	parsed, err := adapter.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if *parsed != *claims {
		t.Errorf("ParseToken() = %+v, want %+v", parsed, claims)
	}
}

func TestParseToken_Expired(t *testing.T) {
	adapter := NewAdapter("test-jwt-secret")
	token, _ := adapter.GenerateToken(testClaims(-time.Hour))

	_, err := adapter.ParseToken(token)
	if !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	adapter := NewAdapter("secret-1")
	valid, _ := adapter.GenerateToken(testClaims(time.Hour))
	foreign, _ := NewAdapter("secret-2").GenerateToken(testClaims(time.Hour))

	wrongIssuer, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "user-123",
			ID:        "session-789",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret-1"))

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: Issuer, Subject: "user-123", ID: "session-789"},
	}).SignedString([]byte("secret-1"))

	noSession, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret-1"))

	wrongAlg, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   "user-123",
			ID:        "session-789",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret-1"))

	tests := map[string]string{
		"empty":           "",
		"not a jwt":       "not-a-jwt",
		"two parts":       "header.payload",
		"tampered":        valid[:len(valid)-2] + "xx",
		"wrong secret":    foreign,
		"wrong issuer":    wrongIssuer,
		"no expiry":       noExpiry,
		"no session":      noSession,
		"wrong algorithm": wrongAlg,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := adapter.ParseToken(token)
			if !errors.Is(err, domain.ErrTokenInvalid) {
				t.Errorf("expected ErrTokenInvalid, got %v", err)
			}
		})
	}
}

func BenchmarkParseToken(b *testing.B) {
	adapter := NewAdapter("test-secret")
	token, _ := adapter.GenerateToken(testClaims(time.Hour))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = adapter.ParseToken(token)
	}
}
