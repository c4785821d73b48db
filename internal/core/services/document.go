package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driving"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Ensure documentService implements DocumentService
var _ driving.DocumentService = (*documentService)(nil)

// documentService implements the DocumentService interface
type documentService struct {
	*core
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(cfg CoreConfig) driving.DocumentService {
	return &documentService{core: newCore(cfg)}
}

// CreateDraft stores every upload and creates a draft owned by caller.
// Nothing is created unless every file and signer is valid.
func (s *documentService) CreateDraft(ctx context.Context, caller *domain.Identity, req driving.CreateDraftRequest, meta domain.RequestMeta) (*domain.Document, error) {
	if !caller.Valid() {
		return nil, errMissingCaller
	}
	if err := validateRequest(domain.CodeValidation, req); err != nil {
		return nil, err
	}

	cfg := domain.DefaultDocumentConfig()
	if req.Config != nil {
		cfg = *req.Config
		if !cfg.WorkflowType.Valid() {
			return nil, domain.NewValidationError(domain.CodeValidation, "invalid configuration", []domain.Violation{
				{Field: "configuration.workflow_type", Message: "must be parallel or sequential"},
			})
		}
	}

	inspected, err := inspectUploads(req.Files, s.maxUploadBytes)
	if err != nil {
		return nil, err
	}

	now := s.now()
	doc := &domain.Document{
		ID:         newID(),
		Title:      strings.TrimSpace(req.Title),
		Subject:    req.Subject,
		Message:    req.Message,
		Status:     domain.DocumentStatusDraft,
		CreatedBy:  caller.UserID,
		OwnerEmail: caller.Email,
		Config:     cfg,
		Files:      []*domain.File{},
		Signers:    []*domain.Signer{},
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if violations := doc.ReplaceSigners(toSigners(req.Signers)); len(violations) > 0 {
		return nil, domain.NewValidationError(domain.CodeSignerValidation, "invalid signers", violations)
	}

	var stored []string
	cleanup := func() {
		for _, handle := range stored {
			if err := s.blobs.Delete(context.WithoutCancel(ctx), handle); err != nil {
				s.logger.Warn("failed to remove orphaned blob", "handle", handle, "error", err)
			}
		}
	}

	events := make([]*domain.AuditEvent, 0, len(inspected))
	for _, in := range inspected {
		handle, err := s.blobs.Put(ctx, in.upload.Content, in.mimeType)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("store file %s: %w", in.upload.Name, err)
		}
		stored = append(stored, handle)

		file := &domain.File{
			ID:        newID(),
			Name:      in.upload.Name,
			MimeType:  in.mimeType,
			Size:      int64(len(in.upload.Content)),
			Checksum:  in.checksum,
			PageCount: in.pageCount,
			BlobKey:   handle,
			Fields:    []*domain.Field{},
			CreatedAt: now,
		}
		doc.Files = append(doc.Files, file)

		md := meta.ToMetadata()
		md["file_id"] = file.ID
		md["file_name"] = file.Name
		events = append(events, record(doc, domain.EventUploaded, caller.UserID, md, now))
	}

	if err := s.documents.Create(ctx, doc, events); err != nil {
		cleanup()
		return nil, err
	}
	for range events {
		s.metrics.Transition(domain.EventUploaded)
	}

	s.logger.Info("draft created",
		"document_id", doc.ID,
		"owner", caller.UserID,
		"files", len(doc.Files),
	)
	return doc, nil
}

// Get retrieves a document the caller owns or is listed on
func (s *documentService) Get(ctx context.Context, caller *domain.Identity, id string) (*domain.Document, error) {
	return s.load(ctx, caller, id, domain.OpView, "")
}

// UpdateDraft applies every requested edit or none of them
func (s *documentService) UpdateDraft(ctx context.Context, caller *domain.Identity, id string, req driving.UpdateDraftRequest, meta domain.RequestMeta) (*domain.Document, error) {
	if err := validateRequest(domain.CodeValidation, req); err != nil {
		return nil, err
	}

	return s.mutate(ctx, change{
		documentID: id,
		caller:     caller,
		op:         domain.OpEdit,
		meta:       meta,
		apply: func(doc *domain.Document, now time.Time) (*domain.Outcome, error) {
			if err := doc.RequireDraft(); err != nil {
				return nil, err
			}
			return applyDraftUpdate(doc, req)
		},
	})
}

// applyDraftUpdate edits doc in place. Signers are replaced before fields
// so that field assignments are validated against the final signer list.
func applyDraftUpdate(doc *domain.Document, req driving.UpdateDraftRequest) (*domain.Outcome, error) {
	changed := false

	if req.Title != nil {
		doc.Title = strings.TrimSpace(*req.Title)
		changed = true
	}
	if req.Subject != nil {
		doc.Subject = *req.Subject
		changed = true
	}
	if req.Message != nil {
		doc.Message = *req.Message
		changed = true
	}

	if req.Config != nil {
		if !req.Config.WorkflowType.Valid() {
			return nil, domain.NewValidationError(domain.CodeValidation, "invalid configuration", []domain.Violation{
				{Field: "configuration.workflow_type", Message: "must be parallel or sequential"},
			})
		}
		doc.Config = *req.Config
		changed = true
	}

	switch {
	case req.Signers != nil:
		if violations := doc.ReplaceSigners(toSigners(req.Signers)); len(violations) > 0 {
			return nil, domain.NewValidationError(domain.CodeSignerValidation, "invalid signers", violations)
		}
		changed = true
	case req.Config != nil:
		doc.OrderSigners()
	}

	var violations []domain.Violation
	for i, ff := range req.Files {
		file := doc.FindFile(ff.FileID)
		if file == nil {
			violations = append(violations, domain.Violation{
				Field:   fmt.Sprintf("files[%d].file_id", i),
				Message: fmt.Sprintf("file %s is not part of this document", ff.FileID),
			})
			continue
		}
		fields := toFields(ff.Fields)
		if v := doc.ValidateFields(file, fields); len(v) > 0 {
			violations = append(violations, v...)
			continue
		}
		file.Fields = fields
		changed = true
	}
	if len(violations) == 0 {
		violations = doc.DanglingFields()
	}
	if len(violations) > 0 {
		return nil, domain.NewValidationError(domain.CodeFieldValidation, "invalid fields", violations)
	}

	if !changed {
		return &domain.Outcome{}, nil
	}
	return &domain.Outcome{Events: []domain.EventType{domain.EventFieldUpdated}}, nil
}

// List returns one page of the caller's documents
func (s *documentService) List(ctx context.Context, caller *domain.Identity, req driving.ListDocumentsRequest) (*driving.DocumentPage, error) {
	if !caller.Valid() {
		return nil, errMissingCaller
	}
	if err := validateRequest(domain.CodeValidation, req); err != nil {
		return nil, err
	}
	if req.Status != "" && !req.Status.Valid() {
		return nil, domain.NewValidationError(domain.CodeValidation, "invalid status filter", []domain.Violation{
			{Field: "status", Message: "must be draft, pending, completed or voided"},
		})
	}
	if req.Scope == "" {
		req.Scope = domain.ScopeOwned
	}
	if !req.Scope.Valid() {
		return nil, domain.NewValidationError(domain.CodeValidation, "invalid scope", []domain.Violation{
			{Field: "scope", Message: "must be owned, assigned or all"},
		})
	}

	page, limit := req.Page, req.Limit
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	docs, total, err := s.documents.List(ctx, driven.DocumentFilter{
		Scope:            req.Scope,
		OwnerID:          caller.UserID,
		ParticipantEmail: strings.ToLower(caller.Email),
		Status:           req.Status,
		Limit:            limit,
		Offset:           (page - 1) * limit,
	})
	if err != nil {
		return nil, err
	}

	summaries := make([]*domain.DocumentSummary, len(docs))
	for i, d := range docs {
		summaries[i] = d.ToSummary()
	}
	return &driving.DocumentPage{
		Documents: summaries,
		Page:      page,
		Limit:     limit,
		Total:     total,
	}, nil
}

// FileContent opens a file after the same access check as Get. No bytes
// are read before the check passes. No lock is held while streaming.
func (s *documentService) FileContent(ctx context.Context, caller *domain.Identity, documentID, fileID string) (*driving.FileContent, error) {
	doc, err := s.load(ctx, caller, documentID, domain.OpView, "")
	if err != nil {
		return nil, err
	}
	file := doc.FindFile(fileID)
	if file == nil {
		return nil, domain.NotFoundf("file %s not found on document %s", fileID, documentID)
	}

	body, err := s.blobs.Get(ctx, file.BlobKey)
	if err != nil {
		return nil, fmt.Errorf("open file %s: %w", fileID, err)
	}
	return &driving.FileContent{
		Name:     file.Name,
		MimeType: file.MimeType,
		Size:     file.Size,
		Body:     body,
	}, nil
}

// Delete removes a draft or voided document with its files and audit trail
func (s *documentService) Delete(ctx context.Context, caller *domain.Identity, id string) error {
	if !caller.Valid() {
		return errMissingCaller
	}

	unlock, err := s.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := s.documents.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(doc, caller, domain.OpDelete, ""); err != nil {
		return err
	}
	if doc.Status != domain.DocumentStatusDraft && doc.Status != domain.DocumentStatusVoided {
		return domain.InvalidStatef("document is %s; only drafts and voided documents can be deleted", doc.Status)
	}

	if err := s.documents.Delete(ctx, id); err != nil {
		return err
	}
	for _, f := range doc.Files {
		if err := s.blobs.Delete(ctx, f.BlobKey); err != nil {
			s.logger.Warn("failed to delete file content", "document_id", id, "file_id", f.ID, "error", err)
		}
	}
	return nil
}

func toSigners(inputs []driving.SignerInput) []*domain.Signer {
	signers := make([]*domain.Signer, len(inputs))
	for i, in := range inputs {
		signers[i] = &domain.Signer{
			ID:            newID(),
			Name:          strings.TrimSpace(in.Name),
			Email:         in.Email,
			Role:          in.Role,
			SequenceIndex: in.SequenceIndex,
			Status:        domain.SignerStatusPending,
		}
	}
	return signers
}

func toFields(inputs []driving.FieldInput) []*domain.Field {
	fields := make([]*domain.Field, len(inputs))
	for i, in := range inputs {
		id := in.ID
		if id == "" {
			id = newID()
		}
		fields[i] = &domain.Field{
			ID:         id,
			Type:       in.Type,
			Position:   in.Position,
			AssignedTo: in.AssignedTo,
			Required:   in.Required,
			Label:      in.Label,
		}
	}
	return fields
}
