package services

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
)

func TestAuthorize(t *testing.T) {
	doc := &domain.Document{
		ID:        "doc-1",
		CreatedBy: owner.UserID,
		Signers: []*domain.Signer{
			{ID: "s-alice", Email: alice, Role: domain.SignerRoleSign},
			{ID: "s-bob", Email: bob, Role: domain.SignerRoleCC},
			{ID: "s-owner", Email: owner.Email, Role: domain.SignerRoleSign},
		},
	}

	tests := []struct {
		name     string
		caller   *domain.Identity
		op       domain.Operation
		signerID string
		wantErr  error
	}{
		{"owner views", owner, domain.OpView, "", nil},
		{"owner edits", owner, domain.OpEdit, "", nil},
		{"owner sends", owner, domain.OpSend, "", nil},
		{"owner voids", owner, domain.OpVoid, "", nil},
		{"owner deletes", owner, domain.OpDelete, "", nil},
		{"owner signs own record", owner, domain.OpSign, "s-owner", nil},
		{"owner cannot sign for alice", owner, domain.OpSign, "s-alice", domain.ErrForbidden},
		{"signer views", identityFor(alice), domain.OpView, "", nil},
		{"cc views", identityFor(bob), domain.OpView, "", nil},
		{"signer signs", identityFor(alice), domain.OpSign, "s-alice", nil},
		{"signer email differs in case", identityFor("ALICE@example.com"), domain.OpDecline, "s-alice", nil},
		{"signer cannot send", identityFor(alice), domain.OpSend, "", domain.ErrForbidden},
		{"signer cannot edit", identityFor(alice), domain.OpEdit, "", domain.ErrForbidden},
		{"signer cannot act for another", identityFor(bob), domain.OpSign, "s-alice", domain.ErrForbidden},
		{"signer action without target", identityFor(alice), domain.OpRecordView, "", nil},
		{"unknown signer for participant", identityFor(alice), domain.OpSign, "s-nobody", domain.ErrNotFound},
		{"unknown signer for stranger", identityFor(dave), domain.OpSign, "s-nobody", domain.ErrForbidden},
		{"stranger views", identityFor(dave), domain.OpView, "", domain.ErrForbidden},
		{"unknown operation", owner, "archive", "", domain.ErrForbidden},
		{"missing caller", nil, domain.OpView, "", domain.ErrUnauthorized},
		{"caller without email", &domain.Identity{UserID: owner.UserID}, domain.OpView, "", domain.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := authorize(doc, tt.caller, tt.op, tt.signerID)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected access, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestAccessGate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc := h.draft(t, domain.WorkflowParallel, signerInput(alice, domain.SignerRoleSign, 0))

	if err := h.gate.Authorize(ctx, doc.ID, identityFor(alice), domain.OpView); err != nil {
		t.Errorf("expected signer to view, got %v", err)
	}
	if err := h.gate.Authorize(ctx, doc.ID, identityFor(alice), domain.OpVoid); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if err := h.gate.Authorize(ctx, "missing", owner, domain.OpView); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	err := h.gate.Authorize(ctx, doc.ID, nil, domain.OpView)
	if domain.CodeOf(err) != domain.CodeMissingToken {
		t.Errorf("expected %s, got %v", domain.CodeMissingToken, err)
	}
}

func TestAuditListRequiresAccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc := h.sent(t, domain.WorkflowParallel, signerInput(alice, domain.SignerRoleSign, 0))

	events, err := h.audit.List(ctx, identityFor(alice), doc.ID)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []domain.EventType{domain.EventUploaded, domain.EventFieldUpdated, domain.EventSent}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, e := range events {
		if e.Type != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], e.Type)
		}
		if e.DocumentID != doc.ID {
			t.Errorf("event %d belongs to %s", i, e.DocumentID)
		}
	}
	if events[2].Actor != owner.UserID {
		t.Errorf("expected the owner as actor of sent, got %s", events[2].Actor)
	}

	if _, err := h.audit.List(ctx, identityFor(dave), doc.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}
