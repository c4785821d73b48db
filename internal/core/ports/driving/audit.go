package driving

import (
	"context"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
)

// AuditService reads a document's audit trail
type AuditService interface {
	// List returns events in commit order, with the same authorization as
	// DocumentService.Get
	List(ctx context.Context, caller *domain.Identity, documentID string) ([]*domain.AuditEvent, error)
}
