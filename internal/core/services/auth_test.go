package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven/mocks"
)

func newTestAuthService() (*mocks.MockUserStore, *mocks.MockSessionStore, *mocks.MockAuthAdapter, *authService) {
	userStore := mocks.NewMockUserStore()
	sessionStore := mocks.NewMockSessionStore()
	authAdapter := mocks.NewMockAuthAdapter()
	svc := NewAuthService(userStore, sessionStore, authAdapter).(*authService)
	return userStore, sessionStore, authAdapter, svc
}

func TestAuthService_Register(t *testing.T) {
	userStore, sessionStore, authAdapter, svc := newTestAuthService()
	ctx := context.Background()

	resp, err := svc.Register(ctx, domain.RegisterRequest{
		Name:     "  Ada Lovelace ",
		Email:    "Ada@Example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if resp.Token == "" || resp.RefreshToken == "" {
		t.Error("expected token pair")
	}
	if resp.User.Email != "ada@example.com" {
		t.Errorf("expected lowercased email, got %s", resp.User.Email)
	}
	if resp.User.Name != "Ada Lovelace" {
		t.Errorf("expected trimmed name, got %q", resp.User.Name)
	}
	if userStore.Count() != 1 || sessionStore.Count() != 1 {
		t.Errorf("expected 1 user and 1 session, got %d and %d", userStore.Count(), sessionStore.Count())
	}
	issued := authAdapter.Issued()
	if len(issued) != 1 || issued[0].UserID != resp.User.ID || issued[0].SessionID == "" {
		t.Errorf("expected one token bound to the new user, got %+v", issued)
	}

	_, err = svc.Register(ctx, domain.RegisterRequest{
		Name:     "Imposter",
		Email:    "ADA@example.com",
		Password: "another-password",
	})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists for duplicate email, got %v", err)
	}
	if domain.CodeOf(err) != domain.CodeAlreadyExists {
		t.Errorf("expected code %s, got %s", domain.CodeAlreadyExists, domain.CodeOf(err))
	}
}

func TestAuthService_RegisterHashFailure(t *testing.T) {
	userStore, _, authAdapter, svc := newTestAuthService()
	authAdapter.HashErr = errors.New("hasher unavailable")

	_, err := svc.Register(context.Background(), domain.RegisterRequest{
		Name:     "Grace",
		Email:    "grace@example.com",
		Password: "long-enough-password",
	})
	if err == nil {
		t.Fatal("expected Register to fail when hashing fails")
	}
	if userStore.Count() != 0 {
		t.Error("user was stored without a password hash")
	}
}

func TestAuthService_RegisterValidation(t *testing.T) {
	_, _, _, svc := newTestAuthService()

	_, err := svc.Register(context.Background(), domain.RegisterRequest{
		Email:    "not-an-email",
		Password: "short",
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	fields := map[string]bool{}
	for _, v := range domain.ViolationsOf(err) {
		fields[v.Field] = true
	}
	for _, want := range []string{"name", "email", "password"} {
		if !fields[want] {
			t.Errorf("expected a violation for %s, got %v", want, domain.ViolationsOf(err))
		}
	}
}

func TestAuthService_Authenticate(t *testing.T) {
	userStore, _, _, svc := newTestAuthService()

	// Mock hasher uses plain text comparison
	user := &domain.User{
		ID:           "user-123",
		Email:        "test@example.com",
		PasswordHash: "password123",
		Name:         "Test User",
		Active:       true,
		CreatedAt:    time.Now(),
	}
	_ = userStore.Save(context.Background(), user)

	tests := []struct {
		name    string
		req     domain.LoginRequest
		wantErr error
	}{
		{
			name:    "valid credentials",
			req:     domain.LoginRequest{Email: "test@example.com", Password: "password123"},
			wantErr: nil,
		},
		{
			name:    "email is case insensitive",
			req:     domain.LoginRequest{Email: "TEST@example.com", Password: "password123"},
			wantErr: nil,
		},
		{
			name:    "empty email",
			req:     domain.LoginRequest{Email: "", Password: "password123"},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "empty password",
			req:     domain.LoginRequest{Email: "test@example.com", Password: ""},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "wrong password",
			req:     domain.LoginRequest{Email: "test@example.com", Password: "wrongpassword"},
			wantErr: domain.ErrInvalidCredentials,
		},
		{
			name:    "unknown user",
			req:     domain.LoginRequest{Email: "nobody@example.com", Password: "password123"},
			wantErr: domain.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.Authenticate(context.Background(), tt.req)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Token == "" {
				t.Error("expected non-empty token")
			}
			if resp.User == nil || resp.User.ID != "user-123" {
				t.Errorf("expected user-123 in response, got %+v", resp.User)
			}
		})
	}

	stored, _ := userStore.Get(context.Background(), "user-123")
	if stored.LastLoginAt == nil {
		t.Error("expected last login to be recorded")
	}
}

func TestAuthService_Authenticate_InactiveUser(t *testing.T) {
	userStore, _, _, svc := newTestAuthService()

	user := &domain.User{
		ID:           "user-inactive",
		Email:        "inactive@example.com",
		PasswordHash: "password123",
		Name:         "Inactive User",
		Active:       false,
		CreatedAt:    time.Now(),
	}
	_ = userStore.Save(context.Background(), user)

	_, err := svc.Authenticate(context.Background(), domain.LoginRequest{
		Email:    "inactive@example.com",
		Password: "password123",
	})

	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for inactive user, got %v", err)
	}
}

func TestAuthService_ValidateToken(t *testing.T) {
	_, sessionStore, authAdapter, svc := newTestAuthService()

	tests := []struct {
		name      string
		setupFunc func(ctx context.Context) string
		wantErr   error
		wantUser  string
	}{
		{
			name:      "empty token",
			setupFunc: func(ctx context.Context) string { return "" },
			wantErr:   domain.ErrTokenInvalid,
		},
		{
			name:      "malformed token",
			setupFunc: func(ctx context.Context) string { return "not!valid@base64#" },
			wantErr:   domain.ErrTokenInvalid,
		},
		{
			name: "expired token",
			setupFunc: func(ctx context.Context) string {
				token, _ := authAdapter.GenerateToken(&domain.TokenClaims{
					UserID:    "user-123",
					Email:     "test@example.com",
					SessionID: "session-123",
					IssuedAt:  time.Now().Add(-2 * time.Hour).Unix(),
					ExpiresAt: time.Now().Add(-1 * time.Hour).Unix(),
				})
				return token
			},
			wantErr: domain.ErrTokenExpired,
		},
		{
			name: "session not found",
			setupFunc: func(ctx context.Context) string {
				token, _ := authAdapter.GenerateToken(&domain.TokenClaims{
					UserID:    "user-123",
					Email:     "test@example.com",
					SessionID: "non-existent-session",
					IssuedAt:  time.Now().Unix(),
					ExpiresAt: time.Now().Add(time.Hour).Unix(),
				})
				return token
			},
			wantErr: domain.ErrSessionNotFound,
		},
		{
			name: "session expired",
			setupFunc: func(ctx context.Context) string {
				token, _ := authAdapter.GenerateToken(&domain.TokenClaims{
					UserID:    "user-456",
					Email:     "test2@example.com",
					SessionID: "session-expired",
					IssuedAt:  time.Now().Unix(),
					ExpiresAt: time.Now().Add(time.Hour).Unix(),
				})
				_ = sessionStore.Save(ctx, &domain.Session{
					ID:        "session-expired",
					UserID:    "user-456",
					Token:     token,
					ExpiresAt: time.Now().Add(-1 * time.Minute),
					CreatedAt: time.Now().Add(-2 * time.Hour),
				})
				return token
			},
			wantErr: domain.ErrTokenExpired,
		},
		{
			name: "successful validation",
			setupFunc: func(ctx context.Context) string {
				token, _ := authAdapter.GenerateToken(&domain.TokenClaims{
					UserID:    "user-789",
					Email:     "valid@example.com",
					Name:      "Valid User",
					SessionID: "session-valid",
					IssuedAt:  time.Now().Unix(),
					ExpiresAt: time.Now().Add(time.Hour).Unix(),
				})
				_ = sessionStore.Save(ctx, &domain.Session{
					ID:        "session-valid",
					UserID:    "user-789",
					Token:     token,
					ExpiresAt: time.Now().Add(time.Hour),
					CreatedAt: time.Now(),
				})
				return token
			},
			wantUser: "user-789",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			token := tt.setupFunc(ctx)

			identity, err := svc.ValidateToken(ctx, token)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if identity.UserID != tt.wantUser {
				t.Errorf("expected UserID %s, got %s", tt.wantUser, identity.UserID)
			}
			if !identity.Valid() {
				t.Error("expected a usable identity")
			}
			if identity.SessionID != "session-valid" {
				t.Errorf("expected SessionID session-valid, got %s", identity.SessionID)
			}
		})
	}
}

func TestAuthService_RefreshToken(t *testing.T) {
	_, sessionStore, _, svc := newTestAuthService()
	ctx := context.Background()

	first, err := svc.Register(ctx, domain.RegisterRequest{Name: "Refresh", Email: "refresh@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	second, err := svc.RefreshToken(ctx, domain.RefreshRequest{RefreshToken: first.RefreshToken})
	if err != nil {
		t.Fatalf("RefreshToken() error = %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Error("expected refresh token rotation")
	}
	if sessionStore.Count() != 1 {
		t.Errorf("expected the old session to be replaced, got %d sessions", sessionStore.Count())
	}

	if _, err := svc.RefreshToken(ctx, domain.RefreshRequest{RefreshToken: first.RefreshToken}); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected reused refresh token to be rejected, got %v", err)
	}
	if _, err := svc.ValidateToken(ctx, first.Token); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected old access token to be dead, got %v", err)
	}
}

func TestAuthService_Logout(t *testing.T) {
	_, sessionStore, _, svc := newTestAuthService()
	ctx := context.Background()

	resp, _ := svc.Register(ctx, domain.RegisterRequest{Name: "Logout", Email: "logout@example.com", Password: "password123"})

	if err := svc.Logout(ctx, resp.Token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if sessionStore.Count() != 0 {
		t.Errorf("expected no sessions, got %d", sessionStore.Count())
	}
	if err := svc.Logout(ctx, "garbage"); err != nil {
		t.Errorf("expected logout of an invalid token to be a no-op, got %v", err)
	}
	if err := svc.Logout(ctx, ""); err != nil {
		t.Errorf("expected logout of an empty token to be a no-op, got %v", err)
	}
}

func TestAuthService_LogoutExpiredToken(t *testing.T) {
	_, sessionStore, authAdapter, svc := newTestAuthService()
	ctx := context.Background()

	token, _ := authAdapter.GenerateToken(&domain.TokenClaims{
		UserID:    "user-1",
		SessionID: "session-stale",
		ExpiresAt: time.Now().Add(-time.Minute).Unix(),
	})
	_ = sessionStore.Save(ctx, &domain.Session{
		ID:        "session-stale",
		UserID:    "user-1",
		Token:     token,
		ExpiresAt: time.Now().Add(-time.Minute),
	})

	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if sessionStore.Count() != 0 {
		t.Error("expected the stale session to be removed")
	}
}

func TestAuthService_LogoutAll(t *testing.T) {
	_, sessionStore, _, svc := newTestAuthService()
	ctx := context.Background()

	resp, _ := svc.Register(ctx, domain.RegisterRequest{Name: "Many", Email: "many@example.com", Password: "password123"})
	_, _ = svc.Authenticate(ctx, domain.LoginRequest{Email: "many@example.com", Password: "password123"})
	if sessionStore.Count() != 2 {
		t.Fatalf("expected 2 sessions, got %d", sessionStore.Count())
	}

	if err := svc.LogoutAll(ctx, resp.User.ID); err != nil {
		t.Fatalf("LogoutAll() error = %v", err)
	}
	if sessionStore.Count() != 0 {
		t.Errorf("expected no sessions, got %d", sessionStore.Count())
	}
}

func TestAuthService_Me(t *testing.T) {
	_, _, _, svc := newTestAuthService()
	ctx := context.Background()

	resp, _ := svc.Register(ctx, domain.RegisterRequest{Name: "Me", Email: "me@example.com", Password: "password123"})

	summary, err := svc.Me(ctx, &domain.Identity{UserID: resp.User.ID, Email: resp.User.Email})
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if summary.Email != "me@example.com" {
		t.Errorf("expected me@example.com, got %s", summary.Email)
	}

	if _, err := svc.Me(ctx, nil); domain.CodeOf(err) != domain.CodeMissingToken {
		t.Errorf("expected %s for a missing caller, got %v", domain.CodeMissingToken, err)
	}
}
