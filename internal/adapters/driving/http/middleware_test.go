package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
)

// mockAuthService resolves tokens through validateTokenFn
type mockAuthService struct {
	validateTokenFn func(ctx context.Context, token string) (*domain.Identity, error)
}

func (m *mockAuthService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.LoginResponse, error) {
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) ValidateToken(ctx context.Context, token string) (*domain.Identity, error) {
	if m.validateTokenFn != nil {
		return m.validateTokenFn(ctx, token)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) RefreshToken(ctx context.Context, req domain.RefreshRequest) (*domain.LoginResponse, error) {
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error { return nil }

func (m *mockAuthService) LogoutAll(ctx context.Context, userID string) error { return nil }

func (m *mockAuthService) Me(ctx context.Context, caller *domain.Identity) (*domain.UserSummary, error) {
	return nil, errors.New("not implemented")
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, rr.Body.String())
	}
	return env
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{"valid bearer token", "Bearer abc123", "abc123"},
		{"bearer with extra spaces", "Bearer   token-with-spaces   ", "token-with-spaces"},
		{"lowercase bearer", "bearer token123", "token123"},
		{"empty header", "", ""},
		{"no bearer prefix", "token123", ""},
		{"basic auth", "Basic dXNlcjpwYXNz", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			if result := extractBearerToken(req); result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestGetIdentity(t *testing.T) {
	if GetIdentity(context.Background()) != nil {
		t.Error("expected nil for context without identity")
	}

	identity := &domain.Identity{UserID: "user-123", Email: "test@example.com"}
	ctx := context.WithValue(context.Background(), identityContextKey, identity)
	result := GetIdentity(ctx)
	if result == nil {
		t.Fatal("expected identity to be returned")
	}
	if result.UserID != "user-123" || result.Email != "test@example.com" {
		t.Errorf("unexpected identity %+v", result)
	}
}

func TestRequestMeta(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.10:51234"
	req.Header.Set("User-Agent", "sign-client/1.0")

	meta := requestMeta(req)
	if meta.IPAddress != "192.0.2.10" {
		t.Errorf("expected remote host, got %s", meta.IPAddress)
	}
	if meta.UserAgent != "sign-client/1.0" {
		t.Errorf("expected user agent, got %s", meta.UserAgent)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := requestMeta(req).IPAddress; got != "203.0.113.7" {
		t.Errorf("expected first forwarded address, got %s", got)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	middleware := NewLoggingMiddleware(logger)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	middleware.Handler(handler).ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

	if rr.Code != http.StatusTeapot {
		t.Errorf("expected status 418, got %d", rr.Code)
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON log line, got %q", buf.String())
	}
	if entry["path"] != "/test" || entry["status"] != float64(http.StatusTeapot) {
		t.Errorf("unexpected log entry %v", entry)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	middleware := NewRecoveryMiddleware(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	rr := httptest.NewRecorder()
	middleware.Handler(handler).ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.Code != domain.CodeInternal || env.Success {
		t.Errorf("unexpected envelope %+v", env)
	}
}

func TestResponseWriter(t *testing.T) {
	rr := httptest.NewRecorder()
	rw := wrapResponseWriter(rr)

	if rw.statusCode != http.StatusOK {
		t.Errorf("expected default 200, got %d", rw.statusCode)
	}

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusOK)
	if rw.statusCode != http.StatusNotFound {
		t.Errorf("expected first status to stick, got %d", rw.statusCode)
	}
	if wrapResponseWriter(rw) != rw {
		t.Error("expected an already wrapped writer to be reused")
	}
	if rw.Unwrap() != rr {
		t.Error("expected Unwrap to return the underlying writer")
	}
}

type recordedRequest struct {
	method, route string
	status        int
}

type recordingMetrics struct {
	requests []recordedRequest
}

func (m *recordingMetrics) Transition(domain.EventType)                     {}
func (m *recordingMetrics) LockContended()                                  {}
func (m *recordingMetrics) NotificationEnqueued(domain.NotificationAction)  {}
func (m *recordingMetrics) NotificationDelivered(domain.NotificationAction) {}
func (m *recordingMetrics) NotificationFailed(domain.NotificationAction)    {}
func (m *recordingMetrics) ObserveRequest(method, route string, status int, _ time.Duration) {
	m.requests = append(m.requests, recordedRequest{method, route, status})
}

func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	metrics := &recordingMetrics{}
	handler := NewMetricsMiddleware(metrics, mux).Handler(mux)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/documents/abc", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nowhere", nil))

	if len(metrics.requests) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(metrics.requests))
	}
	if got := metrics.requests[0]; got.route != "GET /api/v1/documents/{id}" || got.status != http.StatusAccepted {
		t.Errorf("unexpected observation %+v", got)
	}
	if got := metrics.requests[1]; got.route != "unmatched" || got.status != http.StatusNotFound {
		t.Errorf("unexpected observation %+v", got)
	}
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"missing token", "", nil, http.StatusUnauthorized, domain.CodeMissingToken},
		{"expired token", "Bearer old", domain.ErrTokenExpired, http.StatusUnauthorized, domain.CodeTokenExpired},
		{"invalid token", "Bearer junk", domain.ErrTokenInvalid, http.StatusUnauthorized, domain.CodeInvalidToken},
		{"revoked session", "Bearer revoked", domain.ErrSessionNotFound, http.StatusUnauthorized, domain.CodeInvalidToken},
		{"backend failure", "Bearer any", errors.New("session store down"), http.StatusInternalServerError, domain.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			middleware := NewAuthMiddleware(&mockAuthService{
				validateTokenFn: func(ctx context.Context, token string) (*domain.Identity, error) {
					return nil, tt.err
				},
			})
			handler := middleware.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest("GET", "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if called {
				t.Error("handler must not run for a rejected request")
			}
			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if env := decodeEnvelope(t, rr); env.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, env.Code)
			}
		})
	}
}

func TestAuthMiddleware_Authenticate_Success(t *testing.T) {
	middleware := NewAuthMiddleware(&mockAuthService{
		validateTokenFn: func(ctx context.Context, token string) (*domain.Identity, error) {
			if token != "valid-token" {
				return nil, domain.ErrTokenInvalid
			}
			return &domain.Identity{UserID: "user-123", Email: "test@example.com"}, nil
		},
	})

	var identity *domain.Identity
	handler := middleware.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity = GetIdentity(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if identity == nil || identity.UserID != "user-123" {
		t.Errorf("expected identity in context, got %+v", identity)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrTokenExpired, http.StatusUnauthorized},
		{&domain.Error{Kind: domain.ErrUnauthorized, Code: domain.CodeInvalidCredentials}, http.StatusUnauthorized},
		{domain.Forbiddenf("no"), http.StatusForbidden},
		{domain.NotFoundf("gone"), http.StatusNotFound},
		{domain.NewValidationError(domain.CodeFieldValidation, "bad", nil), http.StatusBadRequest},
		{domain.NewValidationError(domain.CodeFileTooLarge, "big", nil), http.StatusRequestEntityTooLarge},
		{domain.InvalidStatef("not a draft"), http.StatusConflict},
		{domain.Conflictf("raced"), http.StatusConflict},
		{domain.ErrAlreadyExists, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(strings.ReplaceAll(tt.err.Error(), " ", "_"), func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
