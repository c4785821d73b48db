package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
)

// Envelope wraps every JSON response
// @Description Response envelope. data is set on success; error, code and violations on failure.
type Envelope struct {
	Success    bool               `json:"success" example:"true"`
	Data       any                `json:"data,omitempty"`
	Error      string             `json:"error,omitempty" example:"document is not a draft"`
	Code       string             `json:"code,omitempty" example:"INVALID_STATE"`
	Violations []domain.Violation `json:"violations,omitempty"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// ReadyResponse lists unreachable backends
// @Description Readiness response
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Failed map[string]string `json:"failed,omitempty"`
}

// PermissionsResponse lists what the caller may do with a document
// @Description Operations the caller is permitted, before state checks
type PermissionsResponse struct {
	DocumentID string             `json:"document_id"`
	Allowed    []domain.Operation `json:"allowed"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Envelope{Error: message, Code: code})
}

// writeServiceError maps a service error to its status and code. Errors
// without a domain kind are logged and reported as internal.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, status, domain.CodeInternal, "internal server error")
		return
	}

	message := err.Error()
	var de *domain.Error
	if errors.As(err, &de) && de.Message != "" {
		message = de.Message
	}
	writeJSON(w, status, Envelope{
		Error:      message,
		Code:       domain.CodeOf(err),
		Violations: domain.ViolationsOf(err),
	})
}

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) int {
	if domain.CodeOf(err) == domain.CodeFileTooLarge {
		return http.StatusRequestEntityTooLarge
	}
	switch {
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrTokenExpired),
		errors.Is(err, domain.ErrTokenInvalid),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched
// when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		writeError(w, http.StatusBadRequest, domain.CodeValidation, "invalid request body")
		return false
	}
	return true
}

// caller returns the authenticated identity or writes a 401
func caller(w http.ResponseWriter, r *http.Request) (*domain.Identity, bool) {
	identity := GetIdentity(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, domain.CodeMissingToken, "missing authorization token")
		return nil, false
	}
	return identity, true
}
