package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*AdvisoryLock)(nil)

// AdvisoryLock implements DistributedLock using PostgreSQL advisory locks.
//
// Advisory locks belong to a session, so each held lock pins one pooled
// connection until it is released. The TTL is ignored: a lock lives until
// Release or until its connection drops. Redis locks are preferred when
// several API instances share a database.
type AdvisoryLock struct {
	db *DB

	mu    sync.Mutex
	holds map[string]advisoryHold
}

type advisoryHold struct {
	token string
	conn  *sql.Conn
}

// NewAdvisoryLock creates a new PostgreSQL advisory lock adapter.
func NewAdvisoryLock(db *DB) *AdvisoryLock {
	return &AdvisoryLock{db: db, holds: make(map[string]advisoryHold)}
}

// hashLockName converts a lock name to the 64-bit key PostgreSQL expects
func hashLockName(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte("sercha-sign:lock:" + name))
	return int64(h.Sum64())
}

// Acquire attempts to acquire a named advisory lock without blocking.
func (l *AdvisoryLock) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Session locks are re-entrant; refuse a second holder in this process.
	if _, held := l.holds[name]; held {
		return "", false, nil
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return "", false, err
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", hashLockName(name)).Scan(&acquired); err != nil {
		_ = conn.Close()
		return "", false, err
	}
	if !acquired {
		_ = conn.Close()
		return "", false, nil
	}

	token := uuid.NewString()
	l.holds[name] = advisoryHold{token: token, conn: conn}
	return token, true, nil
}

// Release releases a named advisory lock held by token and returns its
// connection to the pool. Safe to call even if the lock is not held.
func (l *AdvisoryLock) Release(ctx context.Context, name, token string) error {
	l.mu.Lock()
	hold, held := l.holds[name]
	if !held || hold.token != token {
		l.mu.Unlock()
		return nil
	}
	delete(l.holds, name)
	l.mu.Unlock()

	defer hold.conn.Close()

	var released bool
	return hold.conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", hashLockName(name)).Scan(&released)
}

// Extend only confirms token still holds name, since advisory locks do not
// expire.
func (l *AdvisoryLock) Extend(ctx context.Context, name, token string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if hold, held := l.holds[name]; !held || hold.token != token {
		return fmt.Errorf("lock %s not held by this token", name)
	}
	return nil
}

// Ping checks if the PostgreSQL backend is healthy.
func (l *AdvisoryLock) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}
