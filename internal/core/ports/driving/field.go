package driving

import (
	"context"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
)

// CreateTemplateRequest creates a reusable field set
type CreateTemplateRequest struct {
	Name        string               `json:"name" validate:"required,max=255"`
	Description string               `json:"description" validate:"max=1000"`
	Fields      []TemplateFieldInput `json:"fields" validate:"required,min=1"`
}

// TemplateFieldInput is a template field bound to a signer slot
type TemplateFieldInput struct {
	Type     domain.FieldType `json:"type"`
	Position domain.Position  `json:"position"`
	Slot     string           `json:"slot"`
	Required bool             `json:"required"`
	Label    string           `json:"label,omitempty"`
}

// InstantiateTemplateRequest applies a template to a file. Assignments map
// each template slot to a signer ID or email on the target document.
type InstantiateTemplateRequest struct {
	TemplateID  string            `json:"template_id" validate:"required"`
	Assignments map[string]string `json:"assignments" validate:"required"`
}

// FieldService places fields on files and manages templates
type FieldService interface {
	// SetFields replaces the fields of one file on a draft
	SetFields(ctx context.Context, caller *domain.Identity, documentID, fileID string, fields []FieldInput, meta domain.RequestMeta) (*domain.File, error)

	// SignerFields lists the fields assigned to one signer
	SignerFields(ctx context.Context, caller *domain.Identity, documentID, signerID string) ([]*domain.AssignedField, error)

	// CreateTemplate stores a new template owned by caller
	CreateTemplate(ctx context.Context, caller *domain.Identity, req CreateTemplateRequest) (*domain.Template, error)

	// GetTemplate retrieves one of caller's templates
	GetTemplate(ctx context.Context, caller *domain.Identity, id string) (*domain.Template, error)

	// ListTemplates lists caller's templates
	ListTemplates(ctx context.Context, caller *domain.Identity) ([]*domain.Template, error)

	// DeleteTemplate removes one of caller's templates
	DeleteTemplate(ctx context.Context, caller *domain.Identity, id string) error

	// InstantiateTemplate copies a template's geometry onto a draft file,
	// replacing its fields. Values start empty.
	InstantiateTemplate(ctx context.Context, caller *domain.Identity, documentID, fileID string, req InstantiateTemplateRequest, meta domain.RequestMeta) ([]*domain.Field, error)
}
