package driven

import (
	"time"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
)

// Metrics records operational counters. Implementations must be safe for
// concurrent use.
type Metrics interface {
	// Transition counts a committed workflow transition by event type
	Transition(event domain.EventType)

	// LockContended counts a failed attempt to take a document lock
	LockContended()

	// NotificationEnqueued counts a notification handed to the queue
	NotificationEnqueued(action domain.NotificationAction)

	// NotificationDelivered counts a successful delivery
	NotificationDelivered(action domain.NotificationAction)

	// NotificationFailed counts a failed delivery attempt
	NotificationFailed(action domain.NotificationAction)

	// ObserveRequest records an HTTP request
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}
