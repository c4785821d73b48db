package services

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driving"
)

// Ensure auditService implements AuditService
var _ driving.AuditService = (*auditService)(nil)

// auditService implements the AuditService interface
type auditService struct {
	*core
}

// NewAuditService creates a new AuditService
func NewAuditService(cfg CoreConfig) driving.AuditService {
	return &auditService{core: newCore(cfg)}
}

// List returns the audit trail in commit order
func (s *auditService) List(ctx context.Context, caller *domain.Identity, documentID string) ([]*domain.AuditEvent, error) {
	if _, err := s.load(ctx, caller, documentID, domain.OpView, ""); err != nil {
		return nil, err
	}
	return s.audit.ListByDocument(ctx, documentID)
}

// record builds the next audit event for doc and advances its sequence.
// It cannot fail: the event is committed with the state change that
// produced it.
func record(doc *domain.Document, eventType domain.EventType, actor string, metadata map[string]string, now time.Time) *domain.AuditEvent {
	doc.AuditSeq++
	if len(metadata) == 0 {
		metadata = nil
	}
	return &domain.AuditEvent{
		ID:         newID(),
		DocumentID: doc.ID,
		Sequence:   doc.AuditSeq,
		Type:       eventType,
		Actor:      actor,
		Timestamp:  now,
		Metadata:   metadata,
	}
}
