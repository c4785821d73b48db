package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driving"
)

func box(page int, left, top float64) domain.Position {
	return domain.Position{PageNumber: page, LeftPercent: left, TopPercent: top, WidthPercent: 20, HeightPercent: 5}
}

func TestSetFields(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc := h.draft(t, domain.WorkflowParallel, signerInput(alice, domain.SignerRoleSign, 0))

	file, err := h.fields.SetFields(ctx, owner, doc.ID, doc.Files[0].ID, []driving.FieldInput{
		{Type: domain.FieldTypeSignature, Position: box(1, 10, 10), AssignedTo: alice, Required: true},
		{Type: domain.FieldTypeDate, Position: box(2, 10, 10), AssignedTo: doc.Signers[0].ID, Label: "Date"},
	}, domain.RequestMeta{})
	if err != nil {
		t.Fatalf("SetFields() error = %v", err)
	}
	if len(file.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(file.Fields))
	}
	for _, f := range file.Fields {
		if f.ID == "" {
			t.Error("expected generated field ID")
		}
		if f.AssignedTo != doc.Signers[0].ID {
			t.Errorf("expected assignment by signer ID, got %s", f.AssignedTo)
		}
		if f.Value != nil {
			t.Error("new fields must start without a value")
		}
	}

	events, _ := h.audit.List(ctx, owner, doc.ID)
	last := events[len(events)-1]
	if last.Type != domain.EventFieldUpdated || last.Metadata["file_id"] != doc.Files[0].ID {
		t.Errorf("unexpected last event %+v", last)
	}
}

func TestSetFieldsReportsEveryViolation(t *testing.T) {
	h := newHarness(t)
	doc := h.draft(t, domain.WorkflowParallel,
		signerInput(alice, domain.SignerRoleSign, 0),
		signerInput(bob, domain.SignerRoleCC, 0),
	)

	_, err := h.fields.SetFields(context.Background(), owner, doc.ID, doc.Files[0].ID, []driving.FieldInput{
		{Type: "stamp", Position: box(1, 10, 10), AssignedTo: alice},
		{Type: domain.FieldTypeText, Position: box(9, 10, 10), AssignedTo: alice},
		{Type: domain.FieldTypeText, Position: box(1, 90, 10), AssignedTo: alice},
		{Type: domain.FieldTypeText, Position: box(1, 10, 10), AssignedTo: "stranger@example.com"},
	}, domain.RequestMeta{})
	if domain.CodeOf(err) != domain.CodeFieldValidation {
		t.Fatalf("expected %s, got %v", domain.CodeFieldValidation, err)
	}
	if got := len(domain.ViolationsOf(err)); got != 4 {
		t.Errorf("expected 4 violations, got %d: %v", got, domain.ViolationsOf(err))
	}
	if len(h.reload(t, doc.ID).Files[0].Fields) != 0 {
		t.Error("rejected fields were stored")
	}
}

func TestSetFieldsUnknownFile(t *testing.T) {
	h := newHarness(t)
	doc := h.draft(t, domain.WorkflowParallel, signerInput(alice, domain.SignerRoleSign, 0))

	_, err := h.fields.SetFields(context.Background(), owner, doc.ID, "missing", []driving.FieldInput{
		{Type: domain.FieldTypeText, Position: box(1, 10, 10), AssignedTo: alice},
	}, domain.RequestMeta{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetFieldsAfterSend(t *testing.T) {
	h := newHarness(t)
	doc := h.sent(t, domain.WorkflowParallel, signerInput(alice, domain.SignerRoleSign, 0))

	_, err := h.fields.SetFields(context.Background(), owner, doc.ID, doc.Files[0].ID, nil, domain.RequestMeta{})
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestSignerFields(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc := h.placeSignatures(t, h.draft(t, domain.WorkflowParallel,
		signerInput(alice, domain.SignerRoleSign, 0),
		signerInput(bob, domain.SignerRoleSign, 0),
	))
	a := doc.SignerByEmail(alice)

	fields, err := h.fields.SignerFields(ctx, identityFor(alice), doc.ID, a.ID)
	if err != nil {
		t.Fatalf("SignerFields() error = %v", err)
	}
	if len(fields) != 1 || fields[0].FileID != doc.Files[0].ID {
		t.Errorf("unexpected fields %+v", fields)
	}

	if _, err := h.fields.SignerFields(ctx, owner, doc.ID, a.ID); err != nil {
		t.Errorf("owner should see any signer's fields, got %v", err)
	}
	if _, err := h.fields.SignerFields(ctx, identityFor(bob), doc.ID, a.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden for another signer, got %v", err)
	}
	if _, err := h.fields.SignerFields(ctx, owner, doc.ID, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTemplates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tmpl, err := h.fields.CreateTemplate(ctx, owner, driving.CreateTemplateRequest{
		Name: " NDA ",
		Fields: []driving.TemplateFieldInput{
			{Type: domain.FieldTypeSignature, Position: box(2, 10, 80), Slot: "discloser", Required: true},
			{Type: domain.FieldTypeSignature, Position: box(2, 60, 80), Slot: "recipient", Required: true},
		},
	})
	if err != nil {
		t.Fatalf("CreateTemplate() error = %v", err)
	}
	if tmpl.Name != "NDA" || tmpl.OwnerID != owner.UserID {
		t.Errorf("unexpected template %+v", tmpl)
	}

	list, err := h.fields.ListTemplates(ctx, owner)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListTemplates() = %d, %v", len(list), err)
	}

	if _, err := h.fields.GetTemplate(ctx, identityFor(alice), tmpl.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden for another user, got %v", err)
	}
	if err := h.fields.DeleteTemplate(ctx, identityFor(alice), tmpl.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden deleting another user's template, got %v", err)
	}
	if err := h.fields.DeleteTemplate(ctx, owner, tmpl.ID); err != nil {
		t.Fatalf("DeleteTemplate() error = %v", err)
	}
	if _, err := h.fields.GetTemplate(ctx, owner, tmpl.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCreateTemplateValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.fields.CreateTemplate(context.Background(), owner, driving.CreateTemplateRequest{
		Name: "Broken",
		Fields: []driving.TemplateFieldInput{
			{Type: "stamp", Position: box(1, 10, 10), Slot: "a"},
			{Type: domain.FieldTypeText, Position: box(0, 10, 10), Slot: "b"},
		},
	})
	if domain.CodeOf(err) != domain.CodeFieldValidation {
		t.Fatalf("expected %s, got %v", domain.CodeFieldValidation, err)
	}
	if got := len(domain.ViolationsOf(err)); got != 2 {
		t.Errorf("expected 2 violations, got %v", domain.ViolationsOf(err))
	}

	_, err = h.fields.CreateTemplate(context.Background(), owner, driving.CreateTemplateRequest{Name: "Empty"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for a template without fields, got %v", err)
	}
}

func TestInstantiateTemplate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tmpl, err := h.fields.CreateTemplate(ctx, owner, driving.CreateTemplateRequest{
		Name: "Two party",
		Fields: []driving.TemplateFieldInput{
			{Type: domain.FieldTypeSignature, Position: box(2, 10, 80), Slot: "first", Required: true},
			{Type: domain.FieldTypeSignature, Position: box(2, 60, 80), Slot: "second", Required: true},
		},
	})
	if err != nil {
		t.Fatalf("CreateTemplate() error = %v", err)
	}
	doc := h.draft(t, domain.WorkflowParallel,
		signerInput(alice, domain.SignerRoleSign, 0),
		signerInput(bob, domain.SignerRoleSign, 0),
	)

	_, err = h.fields.InstantiateTemplate(ctx, owner, doc.ID, doc.Files[0].ID, driving.InstantiateTemplateRequest{
		TemplateID:  tmpl.ID,
		Assignments: map[string]string{"first": alice},
	}, domain.RequestMeta{})
	if domain.CodeOf(err) != domain.CodeFieldValidation {
		t.Fatalf("expected a missing slot to fail with %s, got %v", domain.CodeFieldValidation, err)
	}

	fields, err := h.fields.InstantiateTemplate(ctx, owner, doc.ID, doc.Files[0].ID, driving.InstantiateTemplateRequest{
		TemplateID:  tmpl.ID,
		Assignments: map[string]string{"first": alice, "second": bob},
	}, domain.RequestMeta{})
	if err != nil {
		t.Fatalf("InstantiateTemplate() error = %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	if fields[1].AssignedTo != doc.SignerByEmail(bob).ID {
		t.Errorf("expected second slot assigned to bob, got %s", fields[1].AssignedTo)
	}

	if _, err := h.workflow.Send(ctx, owner, doc.ID, domain.RequestMeta{}); err != nil {
		t.Errorf("expected instantiated document to be sendable, got %v", err)
	}
}

func TestInstantiateTemplateChecksPageCount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tmpl, _ := h.fields.CreateTemplate(ctx, owner, driving.CreateTemplateRequest{
		Name:   "Long form",
		Fields: []driving.TemplateFieldInput{{Type: domain.FieldTypeSignature, Position: box(7, 10, 80), Slot: "signer"}},
	})
	doc := h.draft(t, domain.WorkflowParallel, signerInput(alice, domain.SignerRoleSign, 0))

	_, err := h.fields.InstantiateTemplate(ctx, owner, doc.ID, doc.Files[0].ID, driving.InstantiateTemplateRequest{
		TemplateID:  tmpl.ID,
		Assignments: map[string]string{"signer": alice},
	}, domain.RequestMeta{})
	if domain.CodeOf(err) != domain.CodeFieldValidation {
		t.Errorf("expected %s for a page beyond the file, got %v", domain.CodeFieldValidation, err)
	}
}

func TestSetFieldsReportsMissingAndMalformedTogether(t *testing.T) {
	h := newHarness(t)
	doc := h.draft(t, domain.WorkflowParallel, signerInput(alice, domain.SignerRoleSign, 0))

	_, err := h.fields.SetFields(context.Background(), owner, doc.ID, doc.Files[0].ID, []driving.FieldInput{
		{Type: domain.FieldTypeSignature, Position: box(1, 10, 10)},
		{Type: domain.FieldTypeText, Position: box(1, 90, 10), AssignedTo: alice},
		{Type: domain.FieldTypeDate, Position: box(9, 10, 10), AssignedTo: alice},
	}, domain.RequestMeta{})
	if domain.CodeOf(err) != domain.CodeFieldValidation {
		t.Fatalf("expected %s, got %v", domain.CodeFieldValidation, err)
	}
	if got := len(domain.ViolationsOf(err)); got != 3 {
		t.Errorf("expected 3 violations, got %d: %v", got, domain.ViolationsOf(err))
	}

	want := map[string]bool{
		"fields[0].assigned_to": false,
		"fields[1].position":    false,
		"fields[2].position":    false,
	}
	for _, v := range domain.ViolationsOf(err) {
		for suffix := range want {
			if strings.HasSuffix(v.Field, suffix) {
				want[suffix] = true
			}
		}
	}
	for suffix, seen := range want {
		if !seen {
			t.Errorf("no violation for %s in %v", suffix, domain.ViolationsOf(err))
		}
	}
}

func TestSetFieldsRejectsLongLabel(t *testing.T) {
	h := newHarness(t)
	doc := h.draft(t, domain.WorkflowParallel, signerInput(alice, domain.SignerRoleSign, 0))

	_, err := h.fields.SetFields(context.Background(), owner, doc.ID, doc.Files[0].ID, []driving.FieldInput{
		{Type: domain.FieldTypeText, Position: box(1, 10, 10), AssignedTo: alice, Label: strings.Repeat("x", domain.MaxLabelLength+1)},
		{Type: domain.FieldTypeText, Position: box(1, 10, 10)},
	}, domain.RequestMeta{})
	if got := len(domain.ViolationsOf(err)); got != 2 {
		t.Errorf("expected the label and the assignment reported together, got %v", err)
	}
}

func TestFieldIDsAreUniqueAcrossFiles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc, err := h.docs.CreateDraft(ctx, owner, driving.CreateDraftRequest{
		Title: "Two files",
		Files: []driving.FileUpload{
			{Name: "a.pdf", MimeType: "application/pdf", Content: pdfWithPages(1)},
			{Name: "b.pdf", MimeType: "application/pdf", Content: pdfWithPages(1)},
		},
		Signers: []driving.SignerInput{signerInput(alice, domain.SignerRoleSign, 0)},
	}, domain.RequestMeta{})
	if err != nil {
		t.Fatalf("CreateDraft() error = %v", err)
	}
	fileA, fileB := doc.Files[0].ID, doc.Files[1].ID

	if _, err := h.fields.SetFields(ctx, owner, doc.ID, fileA, []driving.FieldInput{
		{ID: "f1", Type: domain.FieldTypeSignature, Position: box(1, 10, 10), AssignedTo: alice, Required: true},
	}, domain.RequestMeta{}); err != nil {
		t.Fatalf("SetFields(a) error = %v", err)
	}

	_, err = h.fields.SetFields(ctx, owner, doc.ID, fileB, []driving.FieldInput{
		{ID: "f1", Type: domain.FieldTypeCheckbox, Position: box(1, 10, 10), AssignedTo: alice},
	}, domain.RequestMeta{})
	v := domain.ViolationsOf(err)
	if domain.CodeOf(err) != domain.CodeFieldValidation || len(v) != 1 || !strings.HasSuffix(v[0].Field, ".id") {
		t.Fatalf("expected a duplicate id violation, got %v", err)
	}

	// Re-saving the same file with its own ids is not a duplicate.
	if _, err := h.fields.SetFields(ctx, owner, doc.ID, fileA, []driving.FieldInput{
		{ID: "f1", Type: domain.FieldTypeSignature, Position: box(1, 20, 20), AssignedTo: alice, Required: true},
	}, domain.RequestMeta{}); err != nil {
		t.Errorf("expected a file to keep its own field ids, got %v", err)
	}

	_, err = h.docs.UpdateDraft(ctx, owner, doc.ID, driving.UpdateDraftRequest{
		Files: []driving.FileFieldsInput{
			{FileID: fileB, Fields: []driving.FieldInput{{ID: "f2", Type: domain.FieldTypeText, Position: box(1, 10, 10), AssignedTo: alice}}},
			{FileID: fileA, Fields: []driving.FieldInput{{ID: "f2", Type: domain.FieldTypeText, Position: box(1, 10, 10), AssignedTo: alice}}},
		},
	}, domain.RequestMeta{})
	if domain.CodeOf(err) != domain.CodeFieldValidation {
		t.Errorf("expected duplicate ids within one update to be rejected, got %v", err)
	}
}

func TestCreateTemplateReportsRequestAndFieldProblemsTogether(t *testing.T) {
	h := newHarness(t)

	_, err := h.fields.CreateTemplate(context.Background(), owner, driving.CreateTemplateRequest{
		Fields: []driving.TemplateFieldInput{
			{Position: box(1, 10, 10), Slot: "a"},
			{Type: domain.FieldTypeText, Position: box(1, 90, 10)},
		},
	})
	if domain.CodeOf(err) != domain.CodeFieldValidation {
		t.Fatalf("expected %s, got %v", domain.CodeFieldValidation, err)
	}
	fields := map[string]bool{}
	for _, v := range domain.ViolationsOf(err) {
		fields[v.Field] = true
	}
	for _, want := range []string{"name", "fields[0].type", "fields[1].slot", "fields[1].position"} {
		if !fields[want] {
			t.Errorf("no violation for %s in %v", want, domain.ViolationsOf(err))
		}
	}
}
