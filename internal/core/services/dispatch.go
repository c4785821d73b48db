package services

import (
	"context"
	"strings"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
)

// dispatch enqueues notifications for a committed transition. Failures are
// logged and never undo the transition; delivery happens in the worker.
func (c *core) dispatch(ctx context.Context, doc *domain.Document, out *domain.Outcome) {
	if c.queue == nil {
		return
	}

	for _, s := range out.Notified {
		c.enqueue(ctx, doc, s.Email, s.Name, domain.NotificationReview)
	}

	if out.Completed {
		seen := make(map[string]bool, len(doc.Signers)+1)
		for _, s := range doc.Signers {
			seen[strings.ToLower(s.Email)] = true
			c.enqueue(ctx, doc, s.Email, s.Name, domain.NotificationCompleted)
		}
		if doc.OwnerEmail != "" && !seen[strings.ToLower(doc.OwnerEmail)] {
			c.enqueue(ctx, doc, doc.OwnerEmail, "", domain.NotificationCompleted)
		}
	}
}

func (c *core) enqueue(ctx context.Context, doc *domain.Document, email, name string, action domain.NotificationAction) {
	now := c.now()
	n := &domain.Notification{
		ID:            newID(),
		DocumentID:    doc.ID,
		DocumentTitle: doc.Title,
		Email:         email,
		Name:          name,
		Action:        action,
		MaxAttempts:   domain.DefaultNotificationAttempts,
		CreatedAt:     now,
		NextAttemptAt: now,
	}
	// The transition is already committed; do not let a cancelled request
	// drop the notification.
	if err := c.queue.Enqueue(context.WithoutCancel(ctx), n); err != nil {
		c.logger.Error("failed to enqueue notification",
			"document_id", doc.ID,
			"email", email,
			"action", action,
			"error", err,
		)
		return
	}
	c.metrics.NotificationEnqueued(action)
}
