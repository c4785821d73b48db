package domain

import (
	"strings"
	"time"
)

// DocumentStatus is the lifecycle state of a document
type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "draft"
	DocumentStatusPending   DocumentStatus = "pending"
	DocumentStatusCompleted DocumentStatus = "completed"
	DocumentStatusVoided    DocumentStatus = "voided"
)

// Valid reports whether s is a known status
func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentStatusDraft, DocumentStatusPending, DocumentStatusCompleted, DocumentStatusVoided:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are accepted
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusCompleted || s == DocumentStatusVoided
}

// CanTransitionTo reports whether moving from s to next is allowed.
// draft -> pending -> completed, and any non-terminal state -> voided.
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	switch next {
	case DocumentStatusPending:
		return s == DocumentStatusDraft
	case DocumentStatusCompleted:
		return s == DocumentStatusPending
	case DocumentStatusVoided:
		return !s.IsTerminal()
	}
	return false
}

// WorkflowType controls how signers are notified
type WorkflowType string

const (
	WorkflowParallel   WorkflowType = "parallel"
	WorkflowSequential WorkflowType = "sequential"
)

// Valid reports whether w is a known workflow type
func (w WorkflowType) Valid() bool {
	return w == WorkflowParallel || w == WorkflowSequential
}

// DocumentScope selects which documents a listing covers
type DocumentScope string

const (
	// ScopeOwned lists documents created by the caller
	ScopeOwned DocumentScope = "owned"
	// ScopeAssigned lists documents where the caller is a listed signer
	ScopeAssigned DocumentScope = "assigned"
	// ScopeAll lists both
	ScopeAll DocumentScope = "all"
)

// Valid reports whether s is a known scope
func (s DocumentScope) Valid() bool {
	return s == ScopeOwned || s == ScopeAssigned || s == ScopeAll
}

// DocumentConfig holds per-document workflow settings
type DocumentConfig struct {
	WorkflowType         WorkflowType `json:"workflow_type"`
	AllowComments        bool         `json:"allow_comments"`
	RequireAllSignatures bool         `json:"require_all_signatures"`
}

// DefaultDocumentConfig returns the configuration applied when none is given
func DefaultDocumentConfig() DocumentConfig {
	return DocumentConfig{
		WorkflowType:         WorkflowParallel,
		AllowComments:        false,
		RequireAllSignatures: true,
	}
}

// Document is the signable aggregate. It exclusively owns its files, fields,
// signers and audit events.
type Document struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Subject    string         `json:"subject"`
	Message    string         `json:"message"`
	Status     DocumentStatus `json:"status"`
	CreatedBy  string         `json:"created_by"`
	OwnerEmail string         `json:"owner_email"`
	Config     DocumentConfig `json:"configuration"`
	Files      []*File        `json:"files"`
	Signers    []*Signer      `json:"signers"`

	// Version increments on every committed change (optimistic concurrency).
	Version int64 `json:"version"`
	// AuditSeq is the sequence number of the last recorded audit event.
	AuditSeq int64 `json:"-"`

	VoidReason  string     `json:"void_reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	VoidedAt    *time.Time `json:"voided_at,omitempty"`
}

// File is an uploaded, immutable piece of content within a document
type File struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mime_type"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	PageCount int       `json:"page_count"`
	BlobKey   string    `json:"-"`
	Fields    []*Field  `json:"fields"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentSummary is the list view of a document
type DocumentSummary struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Status      DocumentStatus `json:"status"`
	CreatedBy   string         `json:"created_by"`
	FileCount   int            `json:"file_count"`
	SignerCount int            `json:"signer_count"`
	Completed   int            `json:"completed_signers"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ToSummary converts a Document to its list view
func (d *Document) ToSummary() *DocumentSummary {
	completed := 0
	for _, s := range d.Signers {
		if s.Status == SignerStatusCompleted {
			completed++
		}
	}
	return &DocumentSummary{
		ID:          d.ID,
		Title:       d.Title,
		Status:      d.Status,
		CreatedBy:   d.CreatedBy,
		FileCount:   len(d.Files),
		SignerCount: len(d.Signers),
		Completed:   completed,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// IsOwner reports whether userID created the document
func (d *Document) IsOwner(userID string) bool {
	return userID != "" && d.CreatedBy == userID
}

// FindFile returns the file with the given ID
func (d *Document) FindFile(fileID string) *File {
	for _, f := range d.Files {
		if f.ID == fileID {
			return f
		}
	}
	return nil
}

// FindSigner returns the signer with the given ID
func (d *Document) FindSigner(signerID string) *Signer {
	for _, s := range d.Signers {
		if s.ID == signerID {
			return s
		}
	}
	return nil
}

// SignerByEmail returns the signer with the given email (case-insensitive)
func (d *Document) SignerByEmail(email string) *Signer {
	if email == "" {
		return nil
	}
	for _, s := range d.Signers {
		if strings.EqualFold(s.Email, email) {
			return s
		}
	}
	return nil
}

// ResolveSigner resolves a field assignment reference (signer ID or email)
func (d *Document) ResolveSigner(ref string) *Signer {
	if s := d.FindSigner(ref); s != nil {
		return s
	}
	return d.SignerByEmail(ref)
}

// ParticipantEmails returns the lower-cased emails of every listed signer
func (d *Document) ParticipantEmails() []string {
	emails := make([]string, 0, len(d.Signers))
	for _, s := range d.Signers {
		emails = append(emails, strings.ToLower(s.Email))
	}
	return emails
}

// FieldsAssignedTo returns every field on every file assigned to signerID
func (d *Document) FieldsAssignedTo(signerID string) []*AssignedField {
	var out []*AssignedField
	for _, f := range d.Files {
		for _, field := range f.Fields {
			if field.AssignedTo == signerID {
				out = append(out, &AssignedField{FileID: f.ID, Field: field})
			}
		}
	}
	return out
}

// Clone returns a deep copy so callers can mutate without affecting shared state
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.SentAt = cloneTime(d.SentAt)
	c.CompletedAt = cloneTime(d.CompletedAt)
	c.VoidedAt = cloneTime(d.VoidedAt)

	c.Files = make([]*File, len(d.Files))
	for i, f := range d.Files {
		fc := *f
		fc.Fields = make([]*Field, len(f.Fields))
		for j, field := range f.Fields {
			fc.Fields[j] = field.Clone()
		}
		c.Files[i] = &fc
	}

	c.Signers = make([]*Signer, len(d.Signers))
	for i, s := range d.Signers {
		c.Signers[i] = s.Clone()
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}
