package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

// Ensure Queue implements NotificationQueue
var _ driven.NotificationQueue = (*Queue)(nil)

const (
	statusPending    = "pending"
	statusProcessing = "processing"
	statusFailed     = "failed"
)

var errTimeout = errors.New("dequeue timeout")

type notificationRecord struct {
	ID           string
	Status       string
	Notification domain.Notification
}

// Queue implements NotificationQueue in memory. Waiting dequeuers are woken
// by memdb watch channels when the table changes.
type Queue struct {
	db *DB
}

// NewQueue creates a new in-memory notification queue
func NewQueue(db *DB) *Queue {
	return &Queue{db: db}
}

// Enqueue adds a notification to the queue
func (q *Queue) Enqueue(_ context.Context, n *domain.Notification) error {
	txn := q.db.db.Txn(true)
	defer txn.Abort()

	rec := &notificationRecord{ID: n.ID, Status: statusPending, Notification: *n}
	if rec.Notification.NextAttemptAt.IsZero() {
		rec.Notification.NextAttemptAt = time.Now()
	}
	if err := txn.Insert(tblNotifications, rec); err != nil {
		return fmt.Errorf("enqueue notification %s: %w", n.ID, err)
	}
	txn.Commit()
	return nil
}

// DequeueWithTimeout claims the earliest due notification, waiting up to
// timeout for one to be enqueued or become due.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Notification, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		n, wake, watch, err := q.claim()
		if err != nil || n != nil {
			return n, err
		}

		var due <-chan time.Time
		var timer *time.Timer
		if !wake.IsZero() {
			timer = time.NewTimer(time.Until(wake))
			due = timer.C
		}

		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-deadline.C:
			err = errTimeout
		case <-watch:
		case <-due:
		}
		if timer != nil {
			timer.Stop()
		}
		if err == errTimeout {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// claim takes the earliest due pending notification. When none is due it
// returns the next due time, if any, and a channel closed on table change.
func (q *Queue) claim() (*domain.Notification, time.Time, <-chan struct{}, error) {
	txn := q.db.db.Txn(true)
	defer txn.Abort()

	iter, err := txn.Get(tblNotifications, "status", statusPending)
	if err != nil {
		return nil, time.Time{}, nil, fmt.Errorf("dequeue notification: %w", err)
	}

	now := time.Now()
	var best *notificationRecord
	var wake time.Time
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		rec := raw.(*notificationRecord)
		at := rec.Notification.NextAttemptAt
		if at.After(now) {
			if wake.IsZero() || at.Before(wake) {
				wake = at
			}
			continue
		}
		if best == nil || at.Before(best.Notification.NextAttemptAt) {
			best = rec
		}
	}
	if best == nil {
		return nil, wake, iter.WatchCh(), nil
	}

	claimed := *best
	claimed.Status = statusProcessing
	if err := txn.Insert(tblNotifications, &claimed); err != nil {
		return nil, time.Time{}, nil, fmt.Errorf("dequeue notification: %w", err)
	}
	txn.Commit()

	n := claimed.Notification
	return &n, time.Time{}, nil, nil
}

// Ack removes a delivered notification
func (q *Queue) Ack(_ context.Context, id string) error {
	txn := q.db.db.Txn(true)
	defer txn.Abort()

	n, err := txn.DeleteAll(tblNotifications, "id", id)
	if err != nil {
		return fmt.Errorf("ack notification %s: %w", id, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	txn.Commit()
	return nil
}

// Nack records a failed attempt, then reschedules the notification or marks
// it failed when its attempts are spent.
func (q *Queue) Nack(_ context.Context, id string, reason string) error {
	txn := q.db.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblNotifications, "id", id)
	if err != nil {
		return fmt.Errorf("nack notification %s: %w", id, err)
	}
	if raw == nil {
		return domain.ErrNotFound
	}

	rec := *raw.(*notificationRecord)
	rec.Notification.Retry(reason)
	rec.Status = statusPending
	if !rec.Notification.CanRetry() {
		rec.Status = statusFailed
	}
	if err := txn.Insert(tblNotifications, &rec); err != nil {
		return fmt.Errorf("nack notification %s: %w", id, err)
	}
	txn.Commit()
	return nil
}

// Ping always succeeds
func (q *Queue) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op
func (q *Queue) Close() error {
	return nil
}
