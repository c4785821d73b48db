package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/custodia-labs/sercha-sign/docs"
	"github.com/custodia-labs/sercha-sign/internal/adapters/driven/auth"
	"github.com/custodia-labs/sercha-sign/internal/adapters/driven/metrics"
	"github.com/custodia-labs/sercha-sign/internal/adapters/driving/http"
	"github.com/custodia-labs/sercha-sign/internal/config"
	"github.com/custodia-labs/sercha-sign/internal/core/services"
	"github.com/custodia-labs/sercha-sign/internal/runtime"
	"github.com/custodia-labs/sercha-sign/internal/worker"
)

// run wires the backends into the services and starts the parts mode asks
// for. It returns once ctx is cancelled and everything has stopped.
func run(ctx context.Context, cfg *config.Config, mode string) error {
	logger := cfg.Logger()
	slog.SetDefault(logger)
	logger.Info("sercha-sign starting", "version", version, "mode", mode)

	if cfg.UsesDevelopmentSecret() {
		logger.Warn("JWT_SECRET is not set; using the development secret")
	}

	backends, err := runtime.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open backends: %w", err)
	}
	defer func() {
		if err := backends.Close(); err != nil {
			logger.Error("closing backends", "error", err)
		}
	}()
	for _, concern := range []string{"store", "sessions", "lock", "queue", "blobs", "notifier"} {
		if backend, ok := backends.Description[concern]; ok {
			logger.Info("backend selected", "concern", concern, "backend", backend)
		}
	}

	m, err := metrics.New(version)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	running := 0

	if mode == modeWorker || mode == modeAll {
		w := worker.NewWorker(worker.WorkerConfig{
			Queue:          backends.Queue,
			Notifier:       backends.Notifier,
			Metrics:        m,
			Logger:         logger,
			Concurrency:    cfg.Worker.Concurrency,
			DequeueTimeout: cfg.DequeueTimeout(),
		})
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start worker: %w", err)
		}
		backends.AddCheck("worker", func(ctx context.Context) error {
			h := w.Health(ctx)
			if !h.Running {
				return errors.New("worker is not running")
			}
			if !h.QueueHealth {
				return fmt.Errorf("worker queue: %s", h.Error)
			}
			return nil
		})
		running++
		go func() {
			<-ctx.Done()
			logger.Info("stopping worker")
			w.Stop()
			logger.Info("worker stopped")
			errCh <- nil
		}()
	}

	if mode == modeAPI || mode == modeAll {
		core := services.CoreConfig{
			Documents:      backends.Documents,
			Audit:          backends.Audit,
			Templates:      backends.Templates,
			Blobs:          backends.Blobs,
			Lock:           backends.Lock,
			Queue:          backends.Queue,
			Metrics:        m,
			Logger:         logger,
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
			LockWait:       cfg.LockWait(),
		}
		authService := services.NewAuthService(backends.Users, backends.Sessions, auth.NewAdapter(cfg.Auth.JWTSecret))

		server := http.NewServer(http.Config{
			Host:           cfg.Server.Host,
			Port:           cfg.Server.Port,
			Version:        version,
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
			Logger:         logger,
			Readiness:      backends,
			Metrics:        m,
			MetricsHandler: m.Handler(),
		},
			authService,
			services.NewDocumentService(core),
			services.NewFieldService(core),
			services.NewWorkflowService(core),
			services.NewAuditService(core),
			services.NewAccessGate(backends.Documents),
		)
		running++
		go func() {
			errCh <- server.Start(ctx)
		}()
	}

	var errs []error
	for ; running > 0; running-- {
		if err := <-errCh; err != nil {
			errs = append(errs, err)
			// The server failed on its own; bring the worker down with it
			cancel()
		}
	}
	logger.Info("sercha-sign stopped")
	return errors.Join(errs...)
}
