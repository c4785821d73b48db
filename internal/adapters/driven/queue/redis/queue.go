package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

const (
	notificationStream = "sercha-sign:notifications"
	dispatcherGroup    = "sercha-sign:dispatchers"
	scheduledKey       = "sercha-sign:notifications:scheduled"
	failedKey          = "sercha-sign:notifications:failed"

	notificationKeyPrefix = "sercha-sign:notification:"

	consumerPrefix = "dispatcher-"

	// claimTimeout is how long a claimed message may stay unacked before
	// another dispatcher takes it over
	claimTimeout = 5 * time.Minute

	// notificationTTL bounds how long notification bodies are kept
	notificationTTL = 7 * 24 * time.Hour
)

// Verify interface compliance
var _ driven.NotificationQueue = (*Queue)(nil)

// Queue implements NotificationQueue using Redis Streams.
// Due notifications sit in a stream read through a consumer group; retries
// wait in a sorted set scored by their next attempt time.
type Queue struct {
	client       *redis.Client
	consumerName string
}

// NewQueue creates a new Redis-backed notification queue.
// consumerName should be unique per worker instance (e.g., hostname + PID).
func NewQueue(ctx context.Context, client *redis.Client, consumerName string) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumerName == "" {
		consumerName = fmt.Sprintf("%s%d", consumerPrefix, time.Now().UnixNano())
	}

	err := client.XGroupCreateMkStream(ctx, notificationStream, dispatcherGroup, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &Queue{client: client, consumerName: consumerName}, nil
}

// Enqueue stores the notification and makes it available at its next
// attempt time.
func (q *Queue) Enqueue(ctx context.Context, n *domain.Notification) error {
	if n == nil {
		return errors.New("notification is required")
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, notificationKeyPrefix+n.ID, data, notificationTTL)
	if n.NextAttemptAt.After(time.Now()) {
		pipe.ZAdd(ctx, scheduledKey, redis.Z{Score: float64(n.NextAttemptAt.UnixMilli()), Member: n.ID})
	} else {
		addToStream(ctx, pipe, n.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

// DequeueWithTimeout returns the next due notification, blocking on the
// stream for up to timeout.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Notification, error) {
	// Best effort; a failure here only delays retries.
	_ = q.promoteScheduled(ctx)

	if n, err := q.claimAbandoned(ctx); err == nil && n != nil {
		return n, nil
	}

	block := timeout
	if block <= 0 {
		block = -1 // no BLOCK argument; return at once
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    dispatcherGroup,
		Consumer: q.consumerName,
		Streams:  []string{notificationStream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	return q.load(ctx, streams[0].Messages[0])
}

// Ack removes a delivered notification
func (q *Queue) Ack(ctx context.Context, id string) error {
	msgID, err := q.client.Get(ctx, notificationKeyPrefix+id+":msg").Result()
	if errors.Is(err, redis.Nil) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get message ID: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.XAck(ctx, notificationStream, dispatcherGroup, msgID)
	pipe.XDel(ctx, notificationStream, msgID)
	pipe.Del(ctx, notificationKeyPrefix+id, notificationKeyPrefix+id+":msg")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack notification: %w", err)
	}
	return nil
}

// Nack records a failed attempt. The notification moves to the scheduled
// set while attempts remain and to the failed list otherwise.
func (q *Queue) Nack(ctx context.Context, id string, reason string) error {
	n, err := q.get(ctx, id)
	if err != nil {
		return err
	}
	msgID, _ := q.client.Get(ctx, notificationKeyPrefix+id+":msg").Result()

	n.Retry(reason)
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	pipe := q.client.TxPipeline()
	if msgID != "" {
		pipe.XAck(ctx, notificationStream, dispatcherGroup, msgID)
		pipe.XDel(ctx, notificationStream, msgID)
	}
	pipe.Set(ctx, notificationKeyPrefix+id, data, notificationTTL)
	if n.CanRetry() {
		pipe.ZAdd(ctx, scheduledKey, redis.Z{Score: float64(n.NextAttemptAt.UnixMilli()), Member: id})
	} else {
		pipe.RPush(ctx, failedKey, id)
	}
	pipe.Del(ctx, notificationKeyPrefix+id+":msg")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to nack notification: %w", err)
	}
	return nil
}

// Ping checks if the queue backend is healthy.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close cleans up resources.
func (q *Queue) Close() error {
	// Redis client is shared, don't close it here
	return nil
}

// get loads a notification body
func (q *Queue) get(ctx context.Context, id string) (*domain.Notification, error) {
	data, err := q.client.Get(ctx, notificationKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}

	var n domain.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
	}
	return &n, nil
}

// load resolves a stream message to its notification and remembers the
// message ID for Ack and Nack. Messages whose body is gone are dropped.
func (q *Queue) load(ctx context.Context, msg redis.XMessage) (*domain.Notification, error) {
	id, ok := msg.Values["notification_id"].(string)
	if !ok {
		q.drop(ctx, msg.ID)
		return nil, nil
	}

	n, err := q.get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		q.drop(ctx, msg.ID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := q.client.Set(ctx, notificationKeyPrefix+id+":msg", msg.ID, notificationTTL).Err(); err != nil {
		return nil, fmt.Errorf("failed to record message ID: %w", err)
	}
	return n, nil
}

func (q *Queue) drop(ctx context.Context, msgID string) {
	q.client.XAck(ctx, notificationStream, dispatcherGroup, msgID)
	q.client.XDel(ctx, notificationStream, msgID)
}

// promoteScheduled moves due retries into the stream
func (q *Queue) promoteScheduled(ctx context.Context) error {
	ids, err := q.client.ZRangeByScore(ctx, scheduledKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(time.Now().UnixMilli(), 10),
	}).Result()
	if err != nil || len(ids) == 0 {
		return err
	}

	for _, id := range ids {
		// ZRem decides which dispatcher promotes a given retry.
		removed, err := q.client.ZRem(ctx, scheduledKey, id).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}
		pipe := q.client.Pipeline()
		addToStream(ctx, pipe, id)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// claimAbandoned takes over a message another dispatcher read but never
// acknowledged.
func (q *Queue) claimAbandoned(ctx context.Context) (*domain.Notification, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: notificationStream,
		Group:  dispatcherGroup,
		Start:  "-",
		End:    "+",
		Count:  10,
		Idle:   claimTimeout,
	}).Result()
	if err != nil {
		return nil, err
	}

	for _, p := range pending {
		claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   notificationStream,
			Group:    dispatcherGroup,
			Consumer: q.consumerName,
			MinIdle:  claimTimeout,
			Messages: []string{p.ID},
		}).Result()
		if err != nil || len(claimed) == 0 {
			continue
		}
		n, err := q.load(ctx, claimed[0])
		if err != nil || n == nil {
			continue
		}
		return n, nil
	}
	return nil, nil
}

func addToStream(ctx context.Context, pipe redis.Pipeliner, id string) {
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: notificationStream,
		Values: map[string]interface{}{"notification_id": id},
	})
}

func isGroupExistsError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}
