package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
)

func testNotification() *domain.Notification {
	return &domain.Notification{
		ID:            "n-1",
		DocumentID:    "doc-1",
		DocumentTitle: "NDA",
		Email:         "alice@example.com",
		Action:        domain.NotificationReview,
		Attempts:      1,
		MaxAttempts:   domain.DefaultNotificationAttempts,
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, n.Notify(context.Background(), testNotification()))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "notification", entry["msg"])
	assert.Equal(t, "alice@example.com", entry["email"])
	assert.Equal(t, "review", entry["action"])
	assert.EqualValues(t, 2, entry["attempt"])
}

func TestWebhookNotifierDelivers(t *testing.T) {
	var got webhookPayload
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		header = r.Header.Get(HeaderNotificationID)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(WebhookConfig{URL: srv.URL, RatePerSecond: 100})
	require.NoError(t, err)
	require.NoError(t, n.Notify(context.Background(), testNotification()))

	assert.Equal(t, "n-1", header)
	assert.Equal(t, "doc-1", got.DocumentID)
	assert.Equal(t, domain.NotificationReview, got.Action)
	assert.Equal(t, 2, got.Attempt)
}

func TestWebhookNotifierFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(WebhookConfig{URL: srv.URL, RatePerSecond: 100})
	require.NoError(t, err)
	err = n.Notify(context.Background(), testNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	n, err = NewWebhookNotifier(WebhookConfig{URL: closed.URL, Timeout: time.Second})
	require.NoError(t, err)
	assert.Error(t, n.Notify(context.Background(), testNotification()))
}

func TestWebhookNotifierRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(WebhookConfig{URL: srv.URL, RatePerSecond: 0.001})
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background(), testNotification()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, n.Notify(ctx, testNotification()))
	assert.EqualValues(t, 1, calls.Load())
}

func TestNewWebhookNotifierRequiresURL(t *testing.T) {
	_, err := NewWebhookNotifier(WebhookConfig{})
	assert.Error(t, err)
}
