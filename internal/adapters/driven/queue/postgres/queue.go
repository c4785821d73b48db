package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
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

// Queue implements NotificationQueue using PostgreSQL with SKIP LOCKED so
// that several workers can share the notifications table.
// This is the fallback queue when Redis is not available.
type Queue struct {
	db           *sql.DB
	pollInterval time.Duration
	visibility   time.Duration
}

// NewQueue creates a new PostgreSQL-backed notification queue.
// Assumes the notifications table exists (see the postgres store schema).
func NewQueue(db *sql.DB) *Queue {
	return &Queue{
		db:           db,
		pollInterval: 250 * time.Millisecond,
		visibility:   5 * time.Minute,
	}
}

// Enqueue adds a notification to the queue
func (q *Queue) Enqueue(ctx context.Context, n *domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	next := n.NextAttemptAt
	if next.IsZero() {
		next = time.Now()
	}

	query := `
		INSERT INTO notifications (
			id, document_id, payload, status, attempts, max_attempts,
			last_error, next_attempt_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = q.db.ExecContext(ctx, query,
		n.ID,
		n.DocumentID,
		payload,
		statusPending,
		n.Attempts,
		n.MaxAttempts,
		n.LastError,
		next,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// DequeueWithTimeout claims the next due notification, polling until
// timeout elapses. A claimed notification that is neither acked nor nacked
// becomes visible again after the visibility window.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Notification, error) {
	deadline := time.Now().Add(timeout)
	for {
		n, err := q.claim(ctx)
		if err != nil || n != nil {
			return n, err
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}

		wait := q.pollInterval
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (q *Queue) claim(ctx context.Context) (*domain.Notification, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	selectQuery := `
		SELECT id, payload, attempts, max_attempts, last_error, next_attempt_at
		FROM notifications
		WHERE (status = $1 AND next_attempt_at <= NOW())
		   OR (status = $2 AND locked_until < NOW())
		ORDER BY next_attempt_at ASC, created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`

	var id string
	var payload []byte
	var n domain.Notification
	var attempts, maxAttempts int
	var lastError string
	var nextAttemptAt time.Time

	err = tx.QueryRowContext(ctx, selectQuery, statusPending, statusProcessing).Scan(
		&id, &payload, &attempts, &maxAttempts, &lastError, &nextAttemptAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select notification: %w", err)
	}

	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("unmarshal notification: %w", err)
	}
	// Columns carry the retry state; the payload keeps its enqueue-time copy.
	n.ID = id
	n.Attempts = attempts
	n.MaxAttempts = maxAttempts
	n.LastError = lastError
	n.NextAttemptAt = nextAttemptAt

	_, err = tx.ExecContext(ctx,
		`UPDATE notifications SET status = $1, locked_until = $2 WHERE id = $3`,
		statusProcessing, time.Now().Add(q.visibility), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update notification status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &n, nil
}

// Ack removes a delivered notification
func (q *Queue) Ack(ctx context.Context, id string) error {
	result, err := q.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Nack records a failed attempt and schedules a retry, or marks the
// notification failed once its attempts are spent.
func (q *Queue) Nack(ctx context.Context, id string, reason string) error {
	var n domain.Notification
	err := q.db.QueryRowContext(ctx,
		`SELECT attempts, max_attempts FROM notifications WHERE id = $1`, id,
	).Scan(&n.Attempts, &n.MaxAttempts)
	if err == sql.ErrNoRows {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get notification: %w", err)
	}

	n.Retry(reason)

	status := statusPending
	if !n.CanRetry() {
		status = statusFailed
	}

	query := `
		UPDATE notifications
		SET status = $1, attempts = $2, last_error = $3, next_attempt_at = $4, locked_until = NULL
		WHERE id = $5
	`
	if _, err := q.db.ExecContext(ctx, query, status, n.Attempts, n.LastError, n.NextAttemptAt, id); err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	return nil
}

// Ping checks database connectivity
func (q *Queue) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

// Close is a no-op; the connection pool is owned by the caller
func (q *Queue) Close() error {
	return nil
}
