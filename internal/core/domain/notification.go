package domain

import "time"

// NotificationAction tells the dispatcher what a message is about
type NotificationAction string

const (
	NotificationReview    NotificationAction = "review"
	NotificationReminder  NotificationAction = "reminder"
	NotificationCompleted NotificationAction = "completed"
)

// DefaultNotificationAttempts is the delivery attempt budget for a notification
const DefaultNotificationAttempts = 5

// Notification is an out-of-band message to a participant.
// Delivery is at-least-once and never blocks a workflow transition.
type Notification struct {
	ID            string             `json:"id"`
	DocumentID    string             `json:"document_id"`
	DocumentTitle string             `json:"document_title"`
	Email         string             `json:"email"`
	Name          string             `json:"name,omitempty"`
	Action        NotificationAction `json:"action"`
	Attempts      int                `json:"attempts"`
	MaxAttempts   int                `json:"max_attempts"`
	LastError     string             `json:"last_error,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	NextAttemptAt time.Time          `json:"next_attempt_at"`
}

// CanRetry reports whether another delivery attempt is allowed
func (n *Notification) CanRetry() bool {
	return n.Attempts < n.MaxAttempts
}

// Retry records a failed attempt and schedules the next one with linear backoff
func (n *Notification) Retry(reason string) {
	n.Attempts++
	n.LastError = reason
	n.NextAttemptAt = time.Now().Add(time.Duration(n.Attempts) * 10 * time.Second)
}
