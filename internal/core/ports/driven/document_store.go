package driven

import (
	"context"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
)

// DocumentFilter narrows a document listing.
// A document matches when it is owned by OwnerID or lists ParticipantEmail,
// depending on Scope.
type DocumentFilter struct {
	Scope            domain.DocumentScope
	OwnerID          string
	ParticipantEmail string
	Status           domain.DocumentStatus // empty means any
	Limit            int
	Offset           int
}

// DocumentStore persists the document aggregate (files, fields, signers)
// together with its audit trail.
//
// Commit is the only way to change a stored document. It succeeds only when
// the stored version equals expectedVersion, and it appends events in the
// same transaction so no committed change is ever missing its audit record.
type DocumentStore interface {
	// Create inserts a new document at its current version along with its events
	Create(ctx context.Context, doc *domain.Document, events []*domain.AuditEvent) error

	// Get retrieves a document by ID. Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// Commit replaces the stored document if its version is still
	// expectedVersion. Returns domain.ErrConflict if it is not.
	Commit(ctx context.Context, doc *domain.Document, expectedVersion int64, events []*domain.AuditEvent) error

	// List returns one page of matching documents ordered by UpdatedAt
	// descending, and the total number of matches.
	List(ctx context.Context, filter DocumentFilter) ([]*domain.Document, int, error)

	// Delete removes a document and everything it owns, audit events included
	Delete(ctx context.Context, id string) error

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error
}

// AuditStore reads the audit trail written by DocumentStore
type AuditStore interface {
	// ListByDocument returns events ordered by sequence
	ListByDocument(ctx context.Context, documentID string) ([]*domain.AuditEvent, error)
}

// TemplateStore persists reusable field templates
type TemplateStore interface {
	Save(ctx context.Context, tmpl *domain.Template) error
	Get(ctx context.Context, id string) (*domain.Template, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Template, error)
	Delete(ctx context.Context, id string) error
}
