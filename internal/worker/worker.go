// Package worker delivers queued notifications.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

// Worker pulls notifications off the queue and hands them to a Notifier.
// Delivery is at-least-once: a notification is acked only after the
// notifier succeeds and nacked otherwise.
type Worker struct {
	queue    driven.NotificationQueue
	notifier driven.Notifier
	metrics  driven.Metrics
	logger   *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout time.Duration
	notifyTimeout  time.Duration

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	Queue          driven.NotificationQueue
	Notifier       driven.Notifier
	Metrics        driven.Metrics // optional
	Logger         *slog.Logger
	Concurrency    int           // Number of concurrent deliveries
	DequeueTimeout time.Duration // How long one dequeue waits before checking for stop
	NotifyTimeout  time.Duration // Upper bound for a single delivery
}

// NewWorker creates a new notification worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5 * time.Second
	}

	notifyTimeout := cfg.NotifyTimeout
	if notifyTimeout <= 0 {
		notifyTimeout = 30 * time.Second
	}

	return &Worker{
		queue:          cfg.Queue,
		notifier:       cfg.Notifier,
		metrics:        cfg.Metrics,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
		notifyTimeout:  notifyTimeout,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	// The loops observe stopCh through a derived context so a blocking
	// dequeue returns as soon as Stop is called.
	loopCtx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-w.stopCh:
		case <-loopCtx.Done():
		}
		cancel()
	}()

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(loopCtx, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		cancel()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker. In-flight deliveries finish first.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	w.mu.RLock()
	done := w.doneCh
	w.mu.RUnlock()
	if done != nil {
		<-done
	}
}

// processLoop is the main processing loop for a worker goroutine.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Debug("worker goroutine started")

	for {
		if ctx.Err() != nil {
			logger.Debug("worker goroutine exiting")
			return
		}

		n, err := w.queue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue notification", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second): // Back off on error
			}
			continue
		}

		if n == nil {
			continue
		}

		w.deliver(ctx, n, logger)
	}
}

// deliver sends one notification and settles it on the queue. Settling uses
// a context detached from shutdown so a stopping worker still acks what it
// delivered.
func (w *Worker) deliver(ctx context.Context, n *domain.Notification, logger *slog.Logger) {
	logger = logger.With(
		"notification_id", n.ID,
		"document_id", n.DocumentID,
		"action", n.Action,
		"attempt", n.Attempts+1,
	)

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.notifyTimeout)
	defer cancel()

	startTime := time.Now()
	err := w.notifier.Notify(notifyCtx, n)
	duration := time.Since(startTime)

	settleCtx := context.WithoutCancel(ctx)
	if err != nil {
		logger.Warn("notification delivery failed",
			"duration", duration,
			"error", err,
		)
		w.countFailed(n.Action)
		if nackErr := w.queue.Nack(settleCtx, n.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack notification", "nack_error", nackErr)
		}
		return
	}

	logger.Debug("notification delivered", "duration", duration)
	w.countDelivered(n.Action)
	if ackErr := w.queue.Ack(settleCtx, n.ID); ackErr != nil {
		logger.Error("failed to ack notification", "ack_error", ackErr)
	}
}

func (w *Worker) countDelivered(action domain.NotificationAction) {
	if w.metrics != nil {
		w.metrics.NotificationDelivered(action)
	}
}

func (w *Worker) countFailed(action domain.NotificationAction) {
	if w.metrics != nil {
		w.metrics.NotificationFailed(action)
	}
}

// Health returns health status of the worker.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{
		Running: running,
	}

	if err := w.queue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}

	return health
}
