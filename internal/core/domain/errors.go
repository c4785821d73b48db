package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or is missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates a valid caller lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState indicates the operation is not permitted in the current workflow state
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict indicates a write-once violation or a lost concurrent update
	ErrConflict = errors.New("conflict")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrSessionNotFound indicates the session does not exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidCredentials indicates wrong email/password combination
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Stable machine-readable error codes returned to API clients.
const (
	CodeMissingToken       = "MISSING_TOKEN"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeAlreadyExists      = "ALREADY_EXISTS"
	CodeValidation         = "VALIDATION_ERROR"
	CodeFieldValidation    = "FIELD_VALIDATION"
	CodeFileValidation     = "FILE_VALIDATION"
	CodeSignerValidation   = "SIGNER_VALIDATION"
	CodeMissingFields      = "MISSING_FIELDS"
	CodeFileTooLarge       = "FILE_TOO_LARGE"
	CodeInvalidState       = "INVALID_STATE"
	CodeConflict           = "CONFLICT"
	CodeInternal           = "INTERNAL_ERROR"
)

// Violation describes a single offending input.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a typed domain error carrying a stable code.
// It unwraps to one of the sentinel errors above, so callers match with errors.Is.
type Error struct {
	Kind       error
	Code       string
	Message    string
	Violations []Violation
}

func (e *Error) Error() string {
	if len(e.Violations) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Message
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, strings.Join(parts, "; "))
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// NewValidationError builds an ErrInvalidInput error listing every violation.
func NewValidationError(code, message string, violations []Violation) *Error {
	return &Error{Kind: ErrInvalidInput, Code: code, Message: message, Violations: violations}
}

// InvalidStatef builds an ErrInvalidState error.
func InvalidStatef(format string, args ...any) *Error {
	return &Error{Kind: ErrInvalidState, Code: CodeInvalidState, Message: fmt.Sprintf(format, args...)}
}

// Conflictf builds an ErrConflict error.
func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: ErrConflict, Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds an ErrNotFound error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: ErrNotFound, Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Forbiddenf builds an ErrForbidden error.
func Forbiddenf(format string, args ...any) *Error {
	return &Error{Kind: ErrForbidden, Code: CodeForbidden, Message: fmt.Sprintf(format, args...)}
}

// Unauthenticatedf builds an ErrUnauthorized error with the given code.
func Unauthenticatedf(code, format string, args ...any) *Error {
	return &Error{Kind: ErrUnauthorized, Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the machine code for err, falling back to the code of its kind.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Code != "" {
		return de.Code
	}
	switch {
	case errors.Is(err, ErrTokenExpired):
		return CodeTokenExpired
	case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrSessionNotFound):
		return CodeInvalidToken
	case errors.Is(err, ErrInvalidCredentials):
		return CodeInvalidCredentials
	case errors.Is(err, ErrUnauthorized):
		return CodeMissingToken
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrAlreadyExists):
		return CodeAlreadyExists
	case errors.Is(err, ErrInvalidInput):
		return CodeValidation
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, ErrConflict):
		return CodeConflict
	default:
		return CodeInternal
	}
}

// ViolationsOf returns the violations attached to err, if any.
func ViolationsOf(err error) []Violation {
	var de *Error
	if errors.As(err, &de) {
		return de.Violations
	}
	return nil
}
