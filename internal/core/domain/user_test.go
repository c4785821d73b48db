package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestUserToSummary(t *testing.T) {
	login := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		lastLogin *time.Time
	}{
		{"signed in before", &login},
		{"never signed in", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := &User{
				ID:           "user-1",
				Email:        "owner@example.com",
				PasswordHash: "$2a$10$secret",
				Name:         "Document Owner",
				Active:       true,
				LastLoginAt:  tt.lastLogin,
			}

			summary := user.ToSummary()
			if summary.ID != user.ID || summary.Email != user.Email || summary.Name != user.Name || !summary.Active {
				t.Errorf("summary does not mirror the account: %+v", summary)
			}
			if (summary.LastLoginAt == nil) != (tt.lastLogin == nil) {
				t.Errorf("expected LastLoginAt %v, got %v", tt.lastLogin, summary.LastLoginAt)
			}

			body, err := json.Marshal(summary)
			if err != nil {
				t.Fatalf("marshal summary: %v", err)
			}
			if strings.Contains(string(body), "secret") {
				t.Errorf("summary leaks the password hash: %s", body)
			}
			if tt.lastLogin == nil && strings.Contains(string(body), "last_login_at") {
				t.Errorf("expected last_login_at to be omitted: %s", body)
			}
		})
	}
}

func TestUserJSONOmitsPasswordHash(t *testing.T) {
	body, err := json.Marshal(&User{ID: "user-1", PasswordHash: "$2a$10$secret"})
	if err != nil {
		t.Fatalf("marshal user: %v", err)
	}
	if strings.Contains(string(body), "secret") {
		t.Errorf("user JSON leaks the password hash: %s", body)
	}
}
