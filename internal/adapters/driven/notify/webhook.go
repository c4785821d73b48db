package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
)

const (
	// DefaultRatePerSecond is the outbound request budget when none is set
	DefaultRatePerSecond = 5.0

	// DefaultTimeout bounds a single webhook request
	DefaultTimeout = 10 * time.Second

	// HeaderNotificationID carries the notification ID so receivers can
	// drop redeliveries.
	HeaderNotificationID = "X-Sercha-Notification-Id"
)

// WebhookConfig configures a WebhookNotifier
type WebhookConfig struct {
	URL           string
	RatePerSecond float64
	Timeout       time.Duration
	Client        *http.Client
}

// WebhookNotifier POSTs notifications as JSON to a single endpoint.
// Outbound requests are throttled with a token bucket.
type WebhookNotifier struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// webhookPayload is the body sent to the endpoint
type webhookPayload struct {
	ID            string                    `json:"id"`
	Action        domain.NotificationAction `json:"action"`
	DocumentID    string                    `json:"document_id"`
	DocumentTitle string                    `json:"document_title"`
	Email         string                    `json:"email"`
	Name          string                    `json:"name,omitempty"`
	Attempt       int                       `json:"attempt"`
	SentAt        time.Time                 `json:"sent_at"`
}

// NewWebhookNotifier creates a WebhookNotifier
func NewWebhookNotifier(cfg WebhookConfig) (*WebhookNotifier, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultRatePerSecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &WebhookNotifier{
		url:     cfg.URL,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
	}, nil
}

// Notify sends n. Any non-2xx response is a failed attempt.
func (w *WebhookNotifier) Notify(ctx context.Context, n *domain.Notification) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(webhookPayload{
		ID:            n.ID,
		Action:        n.Action,
		DocumentID:    n.DocumentID,
		DocumentTitle: n.DocumentTitle,
		Email:         n.Email,
		Name:          n.Name,
		Attempt:       n.Attempts + 1,
		SentAt:        time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderNotificationID, n.ID)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
