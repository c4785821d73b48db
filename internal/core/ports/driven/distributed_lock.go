package driven

import (
	"context"
	"time"
)

// DistributedLock serializes work on a named resource across instances.
// Document mutations lock "document:<id>" so two transitions on the same
// document never interleave; the version check on commit catches anything
// that slips past an expired lock.
type DistributedLock interface {
	// Acquire takes name for ttl and returns a token naming this hold. It
	// returns acquired=false, without error, when another holder has it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (token string, acquired bool, err error)

	// Release frees name only while token still holds it. Releasing an
	// expired or reassigned lock is a no-op.
	Release(ctx context.Context, name, token string) error

	// Extend pushes out the expiry while token still holds name. Backends
	// without expiry, such as PostgreSQL advisory locks, only check the token.
	Extend(ctx context.Context, name, token string, ttl time.Duration) error

	Ping(ctx context.Context) error
}
