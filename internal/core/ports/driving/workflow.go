package driving

import (
	"context"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
)

// SubmitSignatureRequest carries a signer's field values keyed by field ID
type SubmitSignatureRequest struct {
	Values map[string]string `json:"values" validate:"required"`
}

// DeclineRequest carries an optional decline reason
type DeclineRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// VoidRequest carries an optional void reason
type VoidRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// WorkflowService drives the signing state machine
type WorkflowService interface {
	// Send moves a draft into signing and notifies the first signers
	Send(ctx context.Context, caller *domain.Identity, documentID string, meta domain.RequestMeta) (*domain.Document, error)

	// RecordView marks the signer as having opened the document
	RecordView(ctx context.Context, caller *domain.Identity, documentID, signerID string, meta domain.RequestMeta) (*domain.Document, error)

	// SubmitSignature fills the signer's fields and completes their turn
	SubmitSignature(ctx context.Context, caller *domain.Identity, documentID, signerID string, req SubmitSignatureRequest, meta domain.RequestMeta) (*domain.Document, error)

	// Decline refuses to sign, voiding the document
	Decline(ctx context.Context, caller *domain.Identity, documentID, signerID string, req DeclineRequest, meta domain.RequestMeta) (*domain.Document, error)

	// Void cancels a draft or pending document
	Void(ctx context.Context, caller *domain.Identity, documentID string, req VoidRequest, meta domain.RequestMeta) (*domain.Document, error)
}
