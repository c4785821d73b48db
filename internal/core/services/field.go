package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driving"
)

// maxSlotLength bounds a template slot name
const maxSlotLength = 64

// Ensure fieldService implements FieldService
var _ driving.FieldService = (*fieldService)(nil)

// fieldService implements the FieldService interface
type fieldService struct {
	*core
}

// NewFieldService creates a new FieldService
func NewFieldService(cfg CoreConfig) driving.FieldService {
	return &fieldService{core: newCore(cfg)}
}

// SetFields replaces one file's fields. Every offending field is reported.
func (s *fieldService) SetFields(ctx context.Context, caller *domain.Identity, documentID, fileID string, fields []driving.FieldInput, meta domain.RequestMeta) (*domain.File, error) {
	doc, err := s.mutate(ctx, change{
		documentID: documentID,
		caller:     caller,
		op:         domain.OpEdit,
		meta:       meta,
		metadata:   map[string]string{"file_id": fileID},
		apply: func(doc *domain.Document, now time.Time) (*domain.Outcome, error) {
			if err := doc.RequireDraft(); err != nil {
				return nil, err
			}
			file := doc.FindFile(fileID)
			if file == nil {
				return nil, domain.NotFoundf("file %s not found on document %s", fileID, documentID)
			}
			next := toFields(fields)
			if v := doc.ValidateFields(file, next); len(v) > 0 {
				return nil, domain.NewValidationError(domain.CodeFieldValidation, "invalid fields", v)
			}
			file.Fields = next
			return &domain.Outcome{Events: []domain.EventType{domain.EventFieldUpdated}}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return doc.FindFile(fileID), nil
}

// SignerFields lists the fields a signer must fill. The owner may inspect
// any signer; a signer only their own.
func (s *fieldService) SignerFields(ctx context.Context, caller *domain.Identity, documentID, signerID string) ([]*domain.AssignedField, error) {
	doc, err := s.load(ctx, caller, documentID, domain.OpView, "")
	if err != nil {
		return nil, err
	}
	signer := doc.FindSigner(signerID)
	if signer == nil {
		return nil, domain.NotFoundf("signer %s not found on document %s", signerID, documentID)
	}
	if !doc.IsOwner(caller.UserID) && !strings.EqualFold(signer.Email, caller.Email) {
		return nil, domain.Forbiddenf("fields of signer %s are only visible to that signer", signerID)
	}
	fields := doc.FieldsAssignedTo(signerID)
	if fields == nil {
		fields = []*domain.AssignedField{}
	}
	return fields, nil
}

// CreateTemplate validates and stores a template owned by caller
func (s *fieldService) CreateTemplate(ctx context.Context, caller *domain.Identity, req driving.CreateTemplateRequest) (*domain.Template, error) {
	if !caller.Valid() {
		return nil, errMissingCaller
	}
	violations, err := requestViolations(req)
	if err != nil {
		return nil, domain.NewValidationError(domain.CodeValidation, err.Error(), nil)
	}
	requestProblems := len(violations)

	fields := make([]*domain.TemplateField, len(req.Fields))
	for i, f := range req.Fields {
		path := fmt.Sprintf("fields[%d]", i)
		if !f.Type.Valid() {
			violations = append(violations, domain.Violation{Field: path + ".type", Message: fmt.Sprintf("unknown field type %q", f.Type)})
		}
		if slot := strings.TrimSpace(f.Slot); slot == "" || len(slot) > maxSlotLength {
			violations = append(violations, domain.Violation{Field: path + ".slot", Message: fmt.Sprintf("slot must be 1 to %d characters", maxSlotLength)})
		}
		if len(f.Label) > domain.MaxLabelLength {
			violations = append(violations, domain.Violation{Field: path + ".label", Message: fmt.Sprintf("label must be at most %d characters", domain.MaxLabelLength)})
		}
		// Page count is only known once applied to a file.
		for _, p := range f.Position.Problems(0) {
			violations = append(violations, domain.Violation{Field: path + ".position", Message: p})
		}
		fields[i] = &domain.TemplateField{
			Type:     f.Type,
			Position: f.Position,
			Slot:     strings.TrimSpace(f.Slot),
			Required: f.Required,
			Label:    f.Label,
		}
	}
	if len(violations) > requestProblems {
		return nil, domain.NewValidationError(domain.CodeFieldValidation, "invalid template fields", violations)
	}
	if len(violations) > 0 {
		return nil, domain.NewValidationError(domain.CodeValidation, "request is invalid", violations)
	}

	now := s.now()
	tmpl := &domain.Template{
		ID:          newID(),
		OwnerID:     caller.UserID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Fields:      fields,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.templates.Save(ctx, tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// GetTemplate retrieves a template owned by caller
func (s *fieldService) GetTemplate(ctx context.Context, caller *domain.Identity, id string) (*domain.Template, error) {
	if !caller.Valid() {
		return nil, errMissingCaller
	}
	tmpl, err := s.templates.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tmpl.OwnerID != caller.UserID {
		return nil, domain.Forbiddenf("template %s belongs to another user", id)
	}
	return tmpl, nil
}

// ListTemplates lists the caller's templates
func (s *fieldService) ListTemplates(ctx context.Context, caller *domain.Identity) ([]*domain.Template, error) {
	if !caller.Valid() {
		return nil, errMissingCaller
	}
	return s.templates.ListByOwner(ctx, caller.UserID)
}

// DeleteTemplate removes a template owned by caller
func (s *fieldService) DeleteTemplate(ctx context.Context, caller *domain.Identity, id string) error {
	if _, err := s.GetTemplate(ctx, caller, id); err != nil {
		return err
	}
	return s.templates.Delete(ctx, id)
}

// InstantiateTemplate replaces a draft file's fields with fresh copies of a
// template's fields. Values start empty and assignments are checked against
// the document's current signers and the file's page count.
func (s *fieldService) InstantiateTemplate(ctx context.Context, caller *domain.Identity, documentID, fileID string, req driving.InstantiateTemplateRequest, meta domain.RequestMeta) ([]*domain.Field, error) {
	if err := validateRequest(domain.CodeValidation, req); err != nil {
		return nil, err
	}
	tmpl, err := s.GetTemplate(ctx, caller, req.TemplateID)
	if err != nil {
		return nil, err
	}

	doc, err := s.mutate(ctx, change{
		documentID: documentID,
		caller:     caller,
		op:         domain.OpEdit,
		meta:       meta,
		metadata:   map[string]string{"file_id": fileID, "template_id": tmpl.ID},
		apply: func(doc *domain.Document, now time.Time) (*domain.Outcome, error) {
			if err := doc.RequireDraft(); err != nil {
				return nil, err
			}
			file := doc.FindFile(fileID)
			if file == nil {
				return nil, domain.NotFoundf("file %s not found on document %s", fileID, documentID)
			}

			var violations []domain.Violation
			fields := make([]*domain.Field, 0, len(tmpl.Fields))
			for i, tf := range tmpl.Fields {
				ref, ok := req.Assignments[tf.Slot]
				if !ok || strings.TrimSpace(ref) == "" {
					violations = append(violations, domain.Violation{
						Field:   fmt.Sprintf("assignments.%s", tf.Slot),
						Message: fmt.Sprintf("template field %d needs a signer for slot %q", i, tf.Slot),
					})
					continue
				}
				fields = append(fields, &domain.Field{
					ID:         newID(),
					Type:       tf.Type,
					Position:   tf.Position,
					AssignedTo: ref,
					Required:   tf.Required,
					Label:      tf.Label,
				})
			}
			violations = append(violations, doc.ValidateFields(file, fields)...)
			if len(violations) > 0 {
				return nil, domain.NewValidationError(domain.CodeFieldValidation, "template does not fit this document", violations)
			}

			file.Fields = fields
			return &domain.Outcome{Events: []domain.EventType{domain.EventFieldUpdated}}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return doc.FindFile(fileID).Fields, nil
}
