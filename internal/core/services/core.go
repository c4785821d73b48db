package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

const (
	defaultLockTTL  = 30 * time.Second
	defaultLockWait = 2 * time.Second
	lockRetryDelay  = 25 * time.Millisecond
)

// CoreConfig holds the dependencies shared by the document, field, workflow
// and audit services.
type CoreConfig struct {
	Documents driven.DocumentStore
	Audit     driven.AuditStore
	Templates driven.TemplateStore
	Blobs     driven.BlobStore
	Lock      driven.DistributedLock   // optional; the version check still applies without it
	Queue     driven.NotificationQueue // optional; notifications are dropped without it
	Metrics   driven.Metrics           // optional
	Logger    *slog.Logger

	// MaxUploadBytes is the per-file ceiling. Zero means domain.DefaultMaxUploadBytes.
	MaxUploadBytes int64
	// LockTTL bounds how long a crashed holder can block a document.
	LockTTL time.Duration
	// LockWait is how long a mutation waits for a busy document before
	// failing with a conflict.
	LockWait time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// core is the document engine shared by the services. It holds no state
// between calls beyond its dependencies.
type core struct {
	documents driven.DocumentStore
	audit     driven.AuditStore
	templates driven.TemplateStore
	blobs     driven.BlobStore
	lock      driven.DistributedLock
	queue     driven.NotificationQueue
	metrics   driven.Metrics
	logger    *slog.Logger

	maxUploadBytes int64
	lockTTL        time.Duration
	lockWait       time.Duration
	now            func() time.Time
}

func newCore(cfg CoreConfig) *core {
	c := &core{
		documents:      cfg.Documents,
		audit:          cfg.Audit,
		templates:      cfg.Templates,
		blobs:          cfg.Blobs,
		lock:           cfg.Lock,
		queue:          cfg.Queue,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
		maxUploadBytes: cfg.MaxUploadBytes,
		lockTTL:        cfg.LockTTL,
		lockWait:       cfg.LockWait,
		now:            cfg.Now,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.metrics == nil {
		c.metrics = nopMetrics{}
	}
	if c.maxUploadBytes <= 0 {
		c.maxUploadBytes = domain.DefaultMaxUploadBytes
	}
	if c.lockTTL <= 0 {
		c.lockTTL = defaultLockTTL
	}
	if c.lockWait <= 0 {
		c.lockWait = defaultLockWait
	}
	if c.now == nil {
		c.now = func() time.Time { return time.Now().UTC() }
	}
	return c
}

// change describes one read-modify-commit on a document
type change struct {
	documentID string
	caller     *domain.Identity
	op         domain.Operation
	signerID   string // target signer for signer actions
	meta       domain.RequestMeta
	metadata   map[string]string // extra audit metadata

	// apply mutates doc in place and reports what happened. It runs on a
	// private copy, so returning an error discards every change.
	apply func(doc *domain.Document, now time.Time) (*domain.Outcome, error)
}

// mutate runs a change under the document lock: load, authorize, apply,
// record audit events, commit with a version check. Either the new state and
// all its events commit together or nothing changes. Notifications are
// dispatched after the lock is released.
func (c *core) mutate(ctx context.Context, ch change) (*domain.Document, error) {
	if !ch.caller.Valid() {
		return nil, errMissingCaller
	}

	doc, out, err := c.commitLocked(ctx, ch)
	if err != nil {
		return nil, err
	}
	if out != nil {
		c.dispatch(ctx, doc, out)
	}
	return doc, nil
}

// commitLocked is the locked part of mutate. A nil outcome means the change
// was a no-op and doc is the stored state.
func (c *core) commitLocked(ctx context.Context, ch change) (*domain.Document, *domain.Outcome, error) {
	unlock, err := c.acquire(ctx, ch.documentID)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	current, err := c.documents.Get(ctx, ch.documentID)
	if err != nil {
		return nil, nil, err
	}
	if err := authorize(current, ch.caller, ch.op, ch.signerID); err != nil {
		return nil, nil, err
	}

	doc := current.Clone()
	now := c.now()
	out, err := ch.apply(doc, now)
	if err != nil {
		return nil, nil, err
	}
	if !out.Changed() {
		return current, nil, nil
	}

	expected := doc.Version
	doc.Version++
	doc.UpdatedAt = now

	actor := actorFor(doc, ch.caller, ch.op, ch.signerID)
	events := make([]*domain.AuditEvent, 0, len(out.Events))
	for _, et := range out.Events {
		events = append(events, record(doc, et, actor, mergeMetadata(ch.meta.ToMetadata(), ch.metadata), now))
	}

	if err := c.documents.Commit(ctx, doc, expected, events); err != nil {
		return nil, nil, err
	}

	for _, e := range events {
		c.metrics.Transition(e.Type)
	}
	return doc, out, nil
}

// acquire takes the per-document lock, waiting up to lockWait for a busy
// document. The hold is extended every half TTL until the returned func
// releases it.
func (c *core) acquire(ctx context.Context, documentID string) (func(), error) {
	if c.lock == nil {
		return func() {}, nil
	}

	name := "document:" + documentID
	deadline := time.Now().Add(c.lockWait)
	for {
		token, ok, err := c.lock.Acquire(ctx, name, c.lockTTL)
		if err != nil {
			return nil, err
		}
		if ok {
			// Release must run even when the request context is gone.
			bg := context.WithoutCancel(ctx)
			stop, done := make(chan struct{}), make(chan struct{})
			go c.keepAlive(bg, name, token, stop, done)
			return func() {
				close(stop)
				<-done
				if err := c.lock.Release(bg, name, token); err != nil {
					c.logger.Warn("failed to release document lock", "document_id", documentID, "error", err)
				}
			}, nil
		}

		c.metrics.LockContended()
		if time.Now().After(deadline) {
			return nil, domain.Conflictf("document %s is being modified; retry the request", documentID)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
}

// keepAlive extends a held lock until stop closes. A failed extension means
// the hold is gone; the version check on commit still guards the write.
func (c *core) keepAlive(ctx context.Context, name, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.lockTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.lock.Extend(ctx, name, token, c.lockTTL); err != nil {
				c.logger.Warn("failed to extend document lock", "lock", name, "error", err)
				return
			}
		}
	}
}

// load reads a document and checks that caller may perform op on it.
// It takes no lock; use it for reads only.
func (c *core) load(ctx context.Context, caller *domain.Identity, documentID string, op domain.Operation, signerID string) (*domain.Document, error) {
	if !caller.Valid() {
		return nil, errMissingCaller
	}
	doc, err := c.documents.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if err := authorize(doc, caller, op, signerID); err != nil {
		return nil, err
	}
	return doc, nil
}

// actorFor names who performed op. Signers are identified by email, owners
// by user ID.
func actorFor(doc *domain.Document, caller *domain.Identity, op domain.Operation, signerID string) string {
	if op.IsSignerAction() {
		if s := doc.FindSigner(signerID); s != nil {
			return s.Email
		}
	}
	return caller.UserID
}

func mergeMetadata(base, extra map[string]string) map[string]string {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

func newID() string {
	return uuid.NewString()
}

type nopMetrics struct{}

func (nopMetrics) Transition(domain.EventType)                       {}
func (nopMetrics) LockContended()                                    {}
func (nopMetrics) NotificationEnqueued(domain.NotificationAction)    {}
func (nopMetrics) NotificationDelivered(domain.NotificationAction)   {}
func (nopMetrics) NotificationFailed(domain.NotificationAction)      {}
func (nopMetrics) ObserveRequest(string, string, int, time.Duration) {}
