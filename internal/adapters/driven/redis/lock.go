package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

const lockPrefix = "sercha-sign:lock:"

// Lock implements DistributedLock using SET NX with a TTL. Every Acquire
// writes a fresh token as the value, so a holder whose lock expired and was
// taken over cannot release or extend the new hold. Document locks are
// named "document:<id>".
type Lock struct {
	client   *redis.Client
	instance string
}

// NewLock creates a new Redis-backed distributed lock. Tokens are prefixed
// with hostname:pid so a stuck key can be traced to its process.
func NewLock(client *redis.Client) *Lock {
	hostname, _ := os.Hostname()
	return &Lock{
		client:   client,
		instance: fmt.Sprintf("%s:%d", hostname, os.Getpid()),
	}
}

func (l *Lock) newToken() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return l.instance + ":" + hex.EncodeToString(b)
}

// Acquire takes the lock if nobody holds it. A lock already held by this
// process is not re-entered.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := l.newToken()
	ok, err := l.client.SetNX(ctx, lockPrefix+name, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ownedScript runs a command against KEYS[1] only while ARGV[1] owns it.
// ARGV[2] selects the command.
var ownedScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) ~= ARGV[1] then
		return 0
	end
	if ARGV[2] == "release" then
		return redis.call("del", KEYS[1])
	end
	return redis.call("pexpire", KEYS[1], ARGV[3])
`)

// Release deletes the lock if token still holds it
func (l *Lock) Release(ctx context.Context, name, token string) error {
	err := ownedScript.Run(ctx, l.client, []string{lockPrefix + name}, token, "release", 0).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// Extend resets the TTL of a lock token still holds
func (l *Lock) Extend(ctx context.Context, name, token string, ttl time.Duration) error {
	n, err := ownedScript.Run(ctx, l.client, []string{lockPrefix + name}, token, "extend", ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("lock %s not held by this token", name)
	}
	return nil
}

// Ping checks if the Redis backend is healthy.
func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
