// Package runtime assembles the driven adapters selected by configuration.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-sign/internal/adapters/driven/blob"
	"github.com/custodia-labs/sercha-sign/internal/adapters/driven/memory"
	"github.com/custodia-labs/sercha-sign/internal/adapters/driven/notify"
	"github.com/custodia-labs/sercha-sign/internal/adapters/driven/postgres"
	postgresqueue "github.com/custodia-labs/sercha-sign/internal/adapters/driven/queue/postgres"
	redisqueue "github.com/custodia-labs/sercha-sign/internal/adapters/driven/queue/redis"
	redisadapter "github.com/custodia-labs/sercha-sign/internal/adapters/driven/redis"
	"github.com/custodia-labs/sercha-sign/internal/config"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

// Backends holds the infrastructure the services run on. Which adapter
// backs each port depends on configuration.
type Backends struct {
	Users     driven.UserStore
	Sessions  driven.SessionStore
	Documents driven.DocumentStore
	Audit     driven.AuditStore
	Templates driven.TemplateStore
	Blobs     driven.BlobStore
	Lock      driven.DistributedLock
	Queue     driven.NotificationQueue
	Notifier  driven.Notifier

	// Description names the adapter chosen for each concern, for startup logs
	Description map[string]string

	checks  map[string]func(context.Context) error
	closers []func() error
	once    sync.Once
}

// Open connects to every backend cfg selects. On failure anything already
// opened is closed again.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Backends, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backends{
		Description: make(map[string]string),
		checks:      make(map[string]func(context.Context) error),
	}
	defer func() {
		if err != nil {
			_ = b.Close()
		}
	}()

	var redisClient *redis.Client
	if cfg.Storage.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Storage.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		b.closers = append(b.closers, redisClient.Close)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("redis connected")
	}

	switch cfg.Storage.Backend {
	case config.StorageMemory:
		if err := b.openMemory(); err != nil {
			return nil, err
		}
	case config.StoragePostgres:
		if err := b.openPostgres(ctx, cfg); err != nil {
			return nil, err
		}
		logger.Info("postgres connected and schema initialized")
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	// Redis takes over sessions, locks and the queue whenever it is configured
	if redisClient != nil {
		b.Sessions = redisadapter.NewSessionStore(redisClient)
		b.Description["sessions"] = "redis"

		lock := redisadapter.NewLock(redisClient)
		b.Lock = lock
		b.Description["lock"] = "redis"
		b.checks["redis"] = lock.Ping

		consumer := fmt.Sprintf("sercha-sign-%d", os.Getpid())
		queue, err := redisqueue.NewQueue(ctx, redisClient, consumer)
		if err != nil {
			return nil, fmt.Errorf("create notification queue: %w", err)
		}
		b.Queue = queue
		b.Description["queue"] = "redis"
	}

	if err := b.openBlobs(ctx, cfg); err != nil {
		return nil, err
	}

	if cfg.Notify.WebhookURL != "" {
		notifier, err := notify.NewWebhookNotifier(notify.WebhookConfig{
			URL:           cfg.Notify.WebhookURL,
			RatePerSecond: cfg.Notify.RatePerSec,
		})
		if err != nil {
			return nil, err
		}
		b.Notifier = notifier
		b.Description["notifier"] = "webhook"
	} else {
		b.Notifier = notify.NewLogNotifier(logger)
		b.Description["notifier"] = "log"
	}

	b.checks["queue"] = b.Queue.Ping
	b.closers = append(b.closers, b.Queue.Close)

	return b, nil
}

func (b *Backends) openMemory() error {
	db, err := memory.New()
	if err != nil {
		return fmt.Errorf("create memory database: %w", err)
	}
	documents := memory.NewDocumentStore(db)
	b.Users = memory.NewUserStore(db)
	b.Sessions = memory.NewSessionStore(db)
	b.Documents = documents
	b.Audit = documents
	b.Templates = memory.NewTemplateStore(db)
	b.Lock = memory.NewLock(db)
	b.Queue = memory.NewQueue(db)
	for _, concern := range []string{"store", "sessions", "lock", "queue"} {
		b.Description[concern] = "memory"
	}
	b.checks["store"] = documents.Ping
	return nil
}

func (b *Backends) openPostgres(ctx context.Context, cfg *config.Config) error {
	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.Storage.DatabaseURL,
		MaxOpenConns:    cfg.Storage.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime(),
		ConnMaxIdleTime: cfg.ConnMaxIdleTime(),
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	b.closers = append(b.closers, db.Close)

	if err := db.InitSchema(ctx); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}

	documents := postgres.NewDocumentStore(db)
	b.Users = postgres.NewUserStore(db)
	b.Sessions = postgres.NewSessionStore(db)
	b.Documents = documents
	b.Audit = documents
	b.Templates = postgres.NewTemplateStore(db)
	b.Lock = postgres.NewAdvisoryLock(db)
	b.Queue = postgresqueue.NewQueue(db.DB)
	for _, concern := range []string{"store", "sessions", "lock", "queue"} {
		b.Description[concern] = "postgres"
	}
	b.checks["store"] = db.Ping
	return nil
}

func (b *Backends) openBlobs(ctx context.Context, cfg *config.Config) error {
	switch cfg.Blob.Backend {
	case config.BlobS3:
		store, err := blob.NewS3Store(ctx, blob.S3Config{
			Bucket:    cfg.Blob.S3Bucket,
			Region:    cfg.Blob.S3Region,
			Prefix:    cfg.Blob.S3Prefix,
			Endpoint:  cfg.Blob.S3Endpoint,
			AccessKey: cfg.Blob.S3AccessKey,
			SecretKey: cfg.Blob.S3SecretKey,
		})
		if err != nil {
			return fmt.Errorf("create s3 blob store: %w", err)
		}
		b.Blobs = store
		b.checks["blobs"] = store.Ping
		b.Description["blobs"] = "s3"
	case config.BlobFS:
		store, err := blob.NewFSStore(cfg.Blob.Dir)
		if err != nil {
			return err
		}
		b.Blobs = store
		b.Description["blobs"] = "fs"
	default:
		return fmt.Errorf("unknown blob backend %q", cfg.Blob.Backend)
	}
	return nil
}

// Ready pings every backend with a health check. It returns the failures
// keyed by backend name, or nil when everything answered.
func (b *Backends) Ready(ctx context.Context) map[string]error {
	var failed map[string]error
	for name, check := range b.checks {
		if err := check(ctx); err != nil {
			if failed == nil {
				failed = make(map[string]error)
			}
			failed[name] = err
		}
	}
	return failed
}

// AddCheck registers another readiness check. Call it before serving.
func (b *Backends) AddCheck(name string, check func(context.Context) error) {
	b.checks[name] = check
}

// Checks lists the names of the backends Ready pings
func (b *Backends) Checks() []string {
	names := make([]string, 0, len(b.checks))
	for name := range b.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases every connection, newest first
func (b *Backends) Close() error {
	var errs []error
	b.once.Do(func() {
		for i := len(b.closers) - 1; i >= 0; i-- {
			if err := b.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
