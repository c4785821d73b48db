package services

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driving"
)

// Ensure workflowService implements WorkflowService
var _ driving.WorkflowService = (*workflowService)(nil)

// workflowService implements the WorkflowService interface.
// Every transition runs through core.mutate, so two transitions on the same
// document never interleave and a lost race surfaces as ErrConflict.
type workflowService struct {
	*core
}

// NewWorkflowService creates a new WorkflowService
func NewWorkflowService(cfg CoreConfig) driving.WorkflowService {
	return &workflowService{core: newCore(cfg)}
}

// Send moves a draft into signing
func (s *workflowService) Send(ctx context.Context, caller *domain.Identity, documentID string, meta domain.RequestMeta) (*domain.Document, error) {
	doc, err := s.mutate(ctx, change{
		documentID: documentID,
		caller:     caller,
		op:         domain.OpSend,
		meta:       meta,
		apply: func(doc *domain.Document, now time.Time) (*domain.Outcome, error) {
			return doc.Send(now)
		},
	})
	if err == nil {
		s.logger.Info("document sent", "document_id", documentID, "workflow", doc.Config.WorkflowType)
	}
	return doc, err
}

// RecordView marks a signer as having opened the document. Repeat views
// commit nothing.
func (s *workflowService) RecordView(ctx context.Context, caller *domain.Identity, documentID, signerID string, meta domain.RequestMeta) (*domain.Document, error) {
	return s.mutate(ctx, change{
		documentID: documentID,
		caller:     caller,
		op:         domain.OpRecordView,
		signerID:   signerID,
		meta:       meta,
		metadata:   map[string]string{"signer_id": signerID},
		apply: func(doc *domain.Document, now time.Time) (*domain.Outcome, error) {
			return doc.RecordView(signerID, now)
		},
	})
}

// SubmitSignature writes a signer's values and advances the workflow
func (s *workflowService) SubmitSignature(ctx context.Context, caller *domain.Identity, documentID, signerID string, req driving.SubmitSignatureRequest, meta domain.RequestMeta) (*domain.Document, error) {
	if err := validateRequest(domain.CodeFieldValidation, req); err != nil {
		return nil, err
	}

	doc, err := s.mutate(ctx, change{
		documentID: documentID,
		caller:     caller,
		op:         domain.OpSign,
		signerID:   signerID,
		meta:       meta,
		metadata:   map[string]string{"signer_id": signerID},
		apply: func(doc *domain.Document, now time.Time) (*domain.Outcome, error) {
			return doc.SubmitSignature(signerID, req.Values, now)
		},
	})
	if err == nil && doc.Status == domain.DocumentStatusCompleted {
		s.logger.Info("document completed", "document_id", documentID)
	}
	return doc, err
}

// Decline refuses to sign and voids the document
func (s *workflowService) Decline(ctx context.Context, caller *domain.Identity, documentID, signerID string, req driving.DeclineRequest, meta domain.RequestMeta) (*domain.Document, error) {
	if err := validateRequest(domain.CodeValidation, req); err != nil {
		return nil, err
	}

	metadata := map[string]string{"signer_id": signerID}
	if req.Reason != "" {
		metadata["reason"] = req.Reason
	}
	doc, err := s.mutate(ctx, change{
		documentID: documentID,
		caller:     caller,
		op:         domain.OpDecline,
		signerID:   signerID,
		meta:       meta,
		metadata:   metadata,
		apply: func(doc *domain.Document, now time.Time) (*domain.Outcome, error) {
			return doc.Decline(signerID, req.Reason, now)
		},
	})
	if err == nil {
		s.logger.Info("document declined", "document_id", documentID, "signer_id", signerID)
	}
	return doc, err
}

// Void cancels a draft or pending document
func (s *workflowService) Void(ctx context.Context, caller *domain.Identity, documentID string, req driving.VoidRequest, meta domain.RequestMeta) (*domain.Document, error) {
	if err := validateRequest(domain.CodeValidation, req); err != nil {
		return nil, err
	}

	var metadata map[string]string
	if req.Reason != "" {
		metadata = map[string]string{"reason": req.Reason}
	}
	return s.mutate(ctx, change{
		documentID: documentID,
		caller:     caller,
		op:         domain.OpVoid,
		meta:       meta,
		metadata:   metadata,
		apply: func(doc *domain.Document, now time.Time) (*domain.Outcome, error) {
			return doc.Void(req.Reason, now)
		},
	})
}
