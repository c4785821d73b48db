package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driving"
)

// ReadinessChecker reports which backends are unreachable. A nil map means
// the service is ready.
type ReadinessChecker interface {
	Ready(ctx context.Context) map[string]error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	handler    http.Handler
	version    string
	logger     *slog.Logger

	maxUploadBytes int64
	maxFiles       int

	// Services
	authService     driving.AuthService
	docService      driving.DocumentService
	fieldService    driving.FieldService
	workflowService driving.WorkflowService
	auditService    driving.AuditService
	accessGate      driving.AccessGate

	// Infrastructure
	readiness      ReadinessChecker // optional
	metrics        driven.Metrics   // optional
	metricsHandler http.Handler     // optional
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// MaxUploadBytes is the per-file ceiling used to bound upload requests
	MaxUploadBytes int64
	// MaxFiles bounds how many files one upload may carry
	MaxFiles int

	Logger         *slog.Logger
	Readiness      ReadinessChecker
	Metrics        driven.Metrics
	MetricsHandler http.Handler
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		MaxUploadBytes: domain.DefaultMaxUploadBytes,
		MaxFiles:       10,
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	authService driving.AuthService,
	docService driving.DocumentService,
	fieldService driving.FieldService,
	workflowService driving.WorkflowService,
	auditService driving.AuditService,
	accessGate driving.AccessGate,
) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = domain.DefaultMaxUploadBytes
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 10
	}

	s := &Server{
		router:          http.NewServeMux(),
		version:         cfg.Version,
		logger:          cfg.Logger,
		maxUploadBytes:  cfg.MaxUploadBytes,
		maxFiles:        cfg.MaxFiles,
		authService:     authService,
		docService:      docService,
		fieldService:    fieldService,
		workflowService: workflowService,
		auditService:    auditService,
		accessGate:      accessGate,
		readiness:       cfg.Readiness,
		metrics:         cfg.Metrics,
		metricsHandler:  cfg.MetricsHandler,
	}

	s.setupRoutes()

	// Outermost first: recovery sees panics from logging and metrics too
	var handler http.Handler = s.router
	if s.metrics != nil {
		handler = NewMetricsMiddleware(s.metrics, s.router).Handler(handler)
	}
	handler = NewLoggingMiddleware(s.logger).Handler(handler)
	handler = NewRecoveryMiddleware(s.logger).Handler(handler)
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  5 * time.Minute, // uploads
		WriteTimeout: 5 * time.Minute, // file downloads
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.authService)
	protect := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(h)
	}

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.HandleFunc("GET /swagger/doc.json", s.handleSwagger)
	if s.metricsHandler != nil {
		s.router.Handle("GET /metrics", s.metricsHandler)
	}

	// Auth endpoints (public)
	s.router.HandleFunc("POST /api/v1/auth/register", s.handleRegister)
	s.router.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	s.router.HandleFunc("POST /api/v1/auth/refresh", s.handleRefresh)

	// Auth endpoints (authenticated)
	s.router.Handle("POST /api/v1/auth/logout", protect(s.handleLogout))
	s.router.Handle("POST /api/v1/auth/logout-all", protect(s.handleLogoutAll))
	s.router.Handle("GET /api/v1/me", protect(s.handleGetMe))

	// Documents
	s.router.Handle("POST /api/v1/documents", protect(s.handleCreateDocument))
	s.router.Handle("GET /api/v1/documents", protect(s.handleListDocuments))
	s.router.Handle("GET /api/v1/documents/{id}", protect(s.handleGetDocument))
	s.router.Handle("PUT /api/v1/documents/{id}", protect(s.handleUpdateDocument))
	s.router.Handle("DELETE /api/v1/documents/{id}", protect(s.handleDeleteDocument))
	s.router.Handle("GET /api/v1/documents/{id}/files/{fileId}", protect(s.handleGetFileContent))
	s.router.Handle("GET /api/v1/documents/{id}/file/{fileId}", protect(s.handleGetFileContent))
	s.router.Handle("GET /api/v1/documents/{id}/audit", protect(s.handleListAudit))
	s.router.Handle("GET /api/v1/documents/{id}/permissions", protect(s.handlePermissions))

	// Fields and templates
	s.router.Handle("PUT /api/v1/documents/{id}/files/{fileId}/fields", protect(s.handleSetFields))
	s.router.Handle("POST /api/v1/documents/{id}/files/{fileId}/template", protect(s.handleInstantiateTemplate))
	s.router.Handle("GET /api/v1/documents/{id}/signers/{signerId}/fields", protect(s.handleSignerFields))
	s.router.Handle("POST /api/v1/templates", protect(s.handleCreateTemplate))
	s.router.Handle("GET /api/v1/templates", protect(s.handleListTemplates))
	s.router.Handle("GET /api/v1/templates/{id}", protect(s.handleGetTemplate))
	s.router.Handle("DELETE /api/v1/templates/{id}", protect(s.handleDeleteTemplate))

	// Workflow
	s.router.Handle("POST /api/v1/documents/{id}/send", protect(s.handleSend))
	s.router.Handle("POST /api/v1/documents/{id}/void", protect(s.handleVoid))
	s.router.Handle("POST /api/v1/documents/{id}/signers/{signerId}/view", protect(s.handleRecordView))
	s.router.Handle("POST /api/v1/documents/{id}/signers/{signerId}/sign", protect(s.handleSign))
	s.router.Handle("POST /api/v1/documents/{id}/signers/{signerId}/decline", protect(s.handleDecline))
}

// Handler returns the fully wrapped handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
