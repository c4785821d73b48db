package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

// Ensure the notification mocks implement their ports
var (
	_ driven.NotificationQueue = (*MockNotificationQueue)(nil)
	_ driven.Notifier          = (*MockNotifier)(nil)
)

// MockNotificationQueue is an in-memory NotificationQueue for testing.
// Dequeue returns immediately; it never blocks for the timeout.
type MockNotificationQueue struct {
	mu       sync.Mutex
	pending  []*domain.Notification
	inFlight map[string]*domain.Notification
	acked    []string
	nacked   []string
	dropped  []string
	enqueued []*domain.Notification

	// EnqueueErr, when set, is returned by Enqueue
	EnqueueErr error
	// OnEnqueue, when set, sees every notification before it is queued.
	OnEnqueue func(*domain.Notification)
}

// NewMockNotificationQueue creates a new MockNotificationQueue
func NewMockNotificationQueue() *MockNotificationQueue {
	return &MockNotificationQueue{inFlight: make(map[string]*domain.Notification)}
}

func (m *MockNotificationQueue) Enqueue(ctx context.Context, n *domain.Notification) error {
	if m.OnEnqueue != nil {
		m.OnEnqueue(n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EnqueueErr != nil {
		return m.EnqueueErr
	}
	m.pending = append(m.pending, n)
	m.enqueued = append(m.enqueued, n)
	return nil
}

func (m *MockNotificationQueue) DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return nil, nil
	}
	n := m.pending[0]
	m.pending = m.pending[1:]
	m.inFlight[n.ID] = n
	return n, nil
}

func (m *MockNotificationQueue) Ack(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inFlight, id)
	m.acked = append(m.acked, id)
	return nil
}

func (m *MockNotificationQueue) Nack(ctx context.Context, id string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.inFlight[id]
	if !ok {
		return domain.NotFoundf("notification %s not in flight", id)
	}
	delete(m.inFlight, id)
	m.nacked = append(m.nacked, id)
	n.Retry(reason)
	if n.CanRetry() {
		m.pending = append(m.pending, n)
	} else {
		m.dropped = append(m.dropped, id)
	}
	return nil
}

func (m *MockNotificationQueue) Ping(ctx context.Context) error { return nil }

func (m *MockNotificationQueue) Close() error { return nil }

// Helper methods for testing

// Enqueued returns every notification ever enqueued, in order
func (m *MockNotificationQueue) Enqueued() []*domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Notification, len(m.enqueued))
	copy(out, m.enqueued)
	return out
}

// Acked returns acknowledged notification IDs
func (m *MockNotificationQueue) Acked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acked...)
}

// Nacked returns IDs of failed attempts
func (m *MockNotificationQueue) Nacked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.nacked...)
}

// Dropped returns IDs whose attempts ran out
func (m *MockNotificationQueue) Dropped() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.dropped...)
}

// MockNotifier records deliveries and can be told to fail
type MockNotifier struct {
	mu        sync.Mutex
	delivered []*domain.Notification

	// NotifyFn, when set, decides the outcome of each delivery
	NotifyFn func(n *domain.Notification) error
}

// NewMockNotifier creates a new MockNotifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Notify(ctx context.Context, n *domain.Notification) error {
	if m.NotifyFn != nil {
		if err := m.NotifyFn(n); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered = append(m.delivered, n)
	return nil
}

// Delivered returns successfully delivered notifications
func (m *MockNotifier) Delivered() []*domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Notification(nil), m.delivered...)
}
