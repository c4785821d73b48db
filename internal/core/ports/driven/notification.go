package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
)

// NotificationQueue buffers notifications between the workflow engine and
// the delivery worker. Implementations can use Redis (preferred), Postgres
// or memory.
type NotificationQueue interface {
	// Enqueue adds a notification for delivery
	Enqueue(ctx context.Context, n *domain.Notification) error

	// DequeueWithTimeout retrieves the next due notification, waiting up to
	// timeout. Returns nil, nil if nothing became available.
	DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Notification, error)

	// Ack removes a delivered notification
	Ack(ctx context.Context, id string) error

	// Nack records a failed attempt. The notification is scheduled again
	// while it has attempts left and dropped otherwise.
	Nack(ctx context.Context, id string, reason string) error

	// Ping checks if the queue backend is healthy
	Ping(ctx context.Context) error

	// Close cleans up resources
	Close() error
}

// Notifier delivers a notification out of band (email, SMS, webhook)
type Notifier interface {
	Notify(ctx context.Context, n *domain.Notification) error
}
