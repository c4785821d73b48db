package driving

import (
	"context"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
)

// AccessGate decides whether a caller may perform an operation on a document
type AccessGate interface {
	// Authorize returns nil when allowed. A missing caller is reported as
	// domain.ErrUnauthorized and an insufficient one as domain.ErrForbidden.
	Authorize(ctx context.Context, documentID string, caller *domain.Identity, op domain.Operation) error
}
