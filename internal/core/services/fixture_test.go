package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driving"
)

var owner = &domain.Identity{UserID: "owner-1", Email: "owner@example.com", Name: "Owner"}

// identityFor returns the identity of a registered user with email
func identityFor(email string) *domain.Identity {
	return &domain.Identity{UserID: "user-" + email, Email: email, Name: email}
}

// pdfWithPages builds a well-formed PDF with n blank pages.
func pdfWithPages(n int) []byte {
	return buildPDF(n, "")
}

// buildPDF writes a PDF with a correct cross-reference table. A non-empty
// content becomes every page's content stream.
func buildPDF(pages int, content string) []byte {
	var b bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, b.Len())
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	b.WriteString("%PDF-1.4\n")
	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", 3+i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		page := "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >>"
		if content != "" {
			page += fmt.Sprintf(" /Contents %d 0 R", 3+pages+i)
		}
		obj(page + " >>")
	}
	if content != "" {
		for i := 0; i < pages; i++ {
			obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
		}
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return b.Bytes()
}

type harness struct {
	documents *mocks.MockDocumentStore
	templates *mocks.MockTemplateStore
	blobs     *mocks.MockBlobStore
	lock      *mocks.MockDistributedLock
	queue     *mocks.MockNotificationQueue

	docs     driving.DocumentService
	fields   driving.FieldService
	workflow driving.WorkflowService
	audit    driving.AuditService
	gate     driving.AccessGate
}

func newHarness(t *testing.T, opts ...func(*CoreConfig)) *harness {
	t.Helper()
	h := &harness{
		documents: mocks.NewMockDocumentStore(),
		templates: mocks.NewMockTemplateStore(),
		blobs:     mocks.NewMockBlobStore(),
		lock:      mocks.NewMockDistributedLock(),
		queue:     mocks.NewMockNotificationQueue(),
	}
	cfg := CoreConfig{
		Documents: h.documents,
		Audit:     h.documents,
		Templates: h.templates,
		Blobs:     h.blobs,
		Lock:      h.lock,
		Queue:     h.queue,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	h.docs = NewDocumentService(cfg)
	h.fields = NewFieldService(cfg)
	h.workflow = NewWorkflowService(cfg)
	h.audit = NewAuditService(cfg)
	h.gate = NewAccessGate(h.documents)
	return h
}

// draft creates a draft with one two-page PDF owned by owner
func (h *harness) draft(t *testing.T, workflow domain.WorkflowType, signers ...driving.SignerInput) *domain.Document {
	t.Helper()
	cfg := domain.DefaultDocumentConfig()
	cfg.WorkflowType = workflow
	doc, err := h.docs.CreateDraft(context.Background(), owner, driving.CreateDraftRequest{
		Title:   "Lease agreement",
		Config:  &cfg,
		Files:   []driving.FileUpload{{Name: "lease.pdf", MimeType: "application/pdf", Content: pdfWithPages(2)}},
		Signers: signers,
	}, domain.RequestMeta{IPAddress: "10.0.0.1"})
	if err != nil {
		t.Fatalf("CreateDraft() error = %v", err)
	}
	return doc
}

// placeSignatures puts one required signature field on page 1 for every
// blocking signer of doc.
func (h *harness) placeSignatures(t *testing.T, doc *domain.Document) *domain.Document {
	t.Helper()
	var inputs []driving.FieldInput
	for i, s := range doc.Signers {
		if !s.Role.Blocking() {
			continue
		}
		inputs = append(inputs, driving.FieldInput{
			Type:       domain.FieldTypeSignature,
			Position:   domain.Position{PageNumber: 1, LeftPercent: 10, TopPercent: float64(10 * (i + 1)), WidthPercent: 20, HeightPercent: 5},
			AssignedTo: s.Email,
			Required:   true,
		})
	}
	if _, err := h.fields.SetFields(context.Background(), owner, doc.ID, doc.Files[0].ID, inputs, domain.RequestMeta{}); err != nil {
		t.Fatalf("SetFields() error = %v", err)
	}
	return h.reload(t, doc.ID)
}

// sent creates, prepares and sends a document
func (h *harness) sent(t *testing.T, workflow domain.WorkflowType, signers ...driving.SignerInput) *domain.Document {
	t.Helper()
	doc := h.placeSignatures(t, h.draft(t, workflow, signers...))
	doc, err := h.workflow.Send(context.Background(), owner, doc.ID, domain.RequestMeta{})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	return doc
}

// sign fills every field assigned to the signer with email
func (h *harness) sign(ctx context.Context, doc *domain.Document, email string) (*domain.Document, error) {
	s := doc.SignerByEmail(email)
	if s == nil {
		return nil, fmt.Errorf("no signer %s", email)
	}
	values := map[string]string{}
	for _, f := range doc.FieldsAssignedTo(s.ID) {
		values[f.ID] = "/s/ " + email
	}
	return h.workflow.SubmitSignature(ctx, identityFor(email), doc.ID, s.ID, driving.SubmitSignatureRequest{Values: values}, domain.RequestMeta{})
}

func (h *harness) reload(t *testing.T, id string) *domain.Document {
	t.Helper()
	doc, err := h.documents.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", id, err)
	}
	return doc
}

func signerInput(email string, role domain.SignerRole, index int) driving.SignerInput {
	return driving.SignerInput{Name: strings.Split(email, "@")[0], Email: email, Role: role, SequenceIndex: index}
}

func statusOf(doc *domain.Document, email string) domain.SignerStatus {
	if s := doc.SignerByEmail(email); s != nil {
		return s.Status
	}
	return ""
}

// notified returns the emails that received a notification for action
func notified(q *mocks.MockNotificationQueue, action domain.NotificationAction) []string {
	var emails []string
	for _, n := range q.Enqueued() {
		if n.Action == action {
			emails = append(emails, n.Email)
		}
	}
	return emails
}

func countOf(events []domain.EventType, et domain.EventType) int {
	n := 0
	for _, e := range events {
		if e == et {
			n++
		}
	}
	return n
}
