package driving

import (
	"context"
	"io"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
)

// FileUpload is one file received for a new draft
type FileUpload struct {
	Name     string `json:"name" validate:"required,max=255"`
	MimeType string `json:"mime_type" validate:"max=255"`
	Content  []byte `json:"-"`
}

// SignerInput describes a participant on a draft
type SignerInput struct {
	Name          string            `json:"name" validate:"required,max=255"`
	Email         string            `json:"email" validate:"required,email,max=320"`
	Role          domain.SignerRole `json:"role" validate:"required"`
	SequenceIndex int               `json:"sequence_index"`
}

// FieldInput describes a field placement. AssignedTo is a signer ID or email.
// Fields carry no tag validation: Document.ValidateFields checks every
// property of every field in one pass.
type FieldInput struct {
	ID         string           `json:"id,omitempty"`
	Type       domain.FieldType `json:"type"`
	Position   domain.Position  `json:"position"`
	AssignedTo string           `json:"assigned_to"`
	Required   bool             `json:"required"`
	Label      string           `json:"label,omitempty"`
}

// FileFieldsInput replaces the field set of one file. An unknown or empty
// FileID is reported alongside the field violations.
type FileFieldsInput struct {
	FileID string       `json:"file_id"`
	Fields []FieldInput `json:"fields"`
}

// CreateDraftRequest creates a draft document from uploaded files
type CreateDraftRequest struct {
	Title   string                 `json:"title" validate:"required,max=255"`
	Subject string                 `json:"subject" validate:"max=255"`
	Message string                 `json:"message" validate:"max=5000"`
	Config  *domain.DocumentConfig `json:"configuration,omitempty"`
	Files   []FileUpload           `json:"files" validate:"required,min=1,dive"`
	Signers []SignerInput          `json:"signers,omitempty" validate:"dive"`
}

// UpdateDraftRequest edits a draft. Nil members are left unchanged.
// A non-nil Signers replaces the whole signer list; each entry in Files
// replaces that file's fields.
type UpdateDraftRequest struct {
	Title   *string                `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Subject *string                `json:"subject,omitempty" validate:"omitempty,max=255"`
	Message *string                `json:"message,omitempty" validate:"omitempty,max=5000"`
	Config  *domain.DocumentConfig `json:"configuration,omitempty"`
	Signers []SignerInput          `json:"signers,omitempty" validate:"dive"`
	Files   []FileFieldsInput      `json:"files,omitempty"`
}

// ListDocumentsRequest selects one page of documents.
// Page is 1-based; zero values take defaults.
type ListDocumentsRequest struct {
	Page   int                   `json:"page" validate:"gte=0"`
	Limit  int                   `json:"limit" validate:"gte=0,lte=100"`
	Status domain.DocumentStatus `json:"status,omitempty"`
	Scope  domain.DocumentScope  `json:"scope,omitempty"`
}

// DocumentPage is one page of a document listing
type DocumentPage struct {
	Documents []*domain.DocumentSummary `json:"documents"`
	Page      int                       `json:"page"`
	Limit     int                       `json:"limit"`
	Total     int                       `json:"total"`
}

// FileContent streams a stored file. The caller closes Body.
type FileContent struct {
	Name     string
	MimeType string
	Size     int64
	Body     io.ReadCloser
}

// DocumentService manages the document aggregate
type DocumentService interface {
	// CreateDraft stores the uploaded files and creates a draft owned by caller
	CreateDraft(ctx context.Context, caller *domain.Identity, req CreateDraftRequest, meta domain.RequestMeta) (*domain.Document, error)

	// Get retrieves a document visible to caller
	Get(ctx context.Context, caller *domain.Identity, id string) (*domain.Document, error)

	// UpdateDraft edits a draft's metadata, signers and fields
	UpdateDraft(ctx context.Context, caller *domain.Identity, id string, req UpdateDraftRequest, meta domain.RequestMeta) (*domain.Document, error)

	// List returns the caller's documents, most recently updated first
	List(ctx context.Context, caller *domain.Identity, req ListDocumentsRequest) (*DocumentPage, error)

	// FileContent opens a file's bytes after the same check as Get
	FileContent(ctx context.Context, caller *domain.Identity, documentID, fileID string) (*FileContent, error)

	// Delete removes a draft or voided document and everything it owns
	Delete(ctx context.Context, caller *domain.Identity, id string) error
}
