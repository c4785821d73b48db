package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

type lockRecord struct {
	Name      string
	Token     string
	ExpiresAt time.Time
}

// Lock implements DistributedLock for a single process. Locks expire after
// their TTL so a crashed holder cannot wedge a document forever.
type Lock struct {
	db *DB
}

// NewLock creates a new in-process lock
func NewLock(db *DB) *Lock {
	return &Lock{db: db}
}

// Acquire takes the named lock if it is free or expired
func (l *Lock) Acquire(_ context.Context, name string, ttl time.Duration) (string, bool, error) {
	txn := l.db.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblLocks, "id", name)
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	now := time.Now()
	if raw != nil && now.Before(raw.(*lockRecord).ExpiresAt) {
		return "", false, nil
	}

	token := uuid.NewString()
	if err := txn.Insert(tblLocks, &lockRecord{Name: name, Token: token, ExpiresAt: now.Add(ttl)}); err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	txn.Commit()
	return token, true, nil
}

// Release frees the named lock if token still holds it. Safe to call when
// it is not held.
func (l *Lock) Release(_ context.Context, name, token string) error {
	txn := l.db.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblLocks, "id", name)
	if err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	if raw == nil || raw.(*lockRecord).Token != token {
		return nil
	}
	if err := txn.Delete(tblLocks, raw); err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	txn.Commit()
	return nil
}

// Extend pushes the expiry of a held lock out to ttl from now
func (l *Lock) Extend(_ context.Context, name, token string, ttl time.Duration) error {
	txn := l.db.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblLocks, "id", name)
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", name, err)
	}
	now := time.Now()
	if raw == nil || raw.(*lockRecord).Token != token || now.After(raw.(*lockRecord).ExpiresAt) {
		return fmt.Errorf("lock %s not held by this token", name)
	}
	if err := txn.Insert(tblLocks, &lockRecord{Name: name, Token: token, ExpiresAt: now.Add(ttl)}); err != nil {
		return fmt.Errorf("extend lock %s: %w", name, err)
	}
	txn.Commit()
	return nil
}

// Ping always succeeds
func (l *Lock) Ping(_ context.Context) error {
	return nil
}
