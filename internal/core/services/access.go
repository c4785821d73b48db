package services

import (
	"context"
	"strings"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driving"
)

// Ensure accessGate implements AccessGate
var _ driving.AccessGate = (*accessGate)(nil)

var errMissingCaller = domain.Unauthenticatedf(domain.CodeMissingToken, "authentication required")

// accessGate implements the AccessGate interface
type accessGate struct {
	documents driven.DocumentStore
}

// NewAccessGate creates a new AccessGate
func NewAccessGate(documents driven.DocumentStore) driving.AccessGate {
	return &accessGate{documents: documents}
}

// Authorize loads the document and applies the access rules
func (g *accessGate) Authorize(ctx context.Context, documentID string, caller *domain.Identity, op domain.Operation) error {
	if !caller.Valid() {
		return errMissingCaller
	}
	doc, err := g.documents.Get(ctx, documentID)
	if err != nil {
		return err
	}
	return authorize(doc, caller, op, "")
}

// authorize decides whether caller may perform op on doc. Owners may do
// everything an owner does; whether the document's state allows it is left
// to the state machine, which reports ErrInvalidState. Signers may view the
// document and act only on their own signer record. Everyone else is denied.
//
// signerID names the signer record a signer action targets. When empty, any
// signer listed with the caller's email qualifies.
func authorize(doc *domain.Document, caller *domain.Identity, op domain.Operation, signerID string) error {
	if !caller.Valid() {
		return errMissingCaller
	}

	owner := doc.IsOwner(caller.UserID)
	self := doc.SignerByEmail(caller.Email)

	switch op {
	case domain.OpView:
		if owner || self != nil {
			return nil
		}
		return domain.Forbiddenf("you are not a participant on document %s", doc.ID)

	case domain.OpEdit, domain.OpSend, domain.OpVoid, domain.OpDelete:
		if owner {
			return nil
		}
		return domain.Forbiddenf("only the document owner may %s document %s", op, doc.ID)

	case domain.OpRecordView, domain.OpSign, domain.OpDecline:
		if signerID == "" {
			if self != nil {
				return nil
			}
			return domain.Forbiddenf("you are not a signer on document %s", doc.ID)
		}
		target := doc.FindSigner(signerID)
		if target == nil {
			if owner || self != nil {
				return domain.NotFoundf("signer %s not found on document %s", signerID, doc.ID)
			}
			return domain.Forbiddenf("you are not a participant on document %s", doc.ID)
		}
		if !strings.EqualFold(target.Email, caller.Email) {
			return domain.Forbiddenf("signer %s may only be acted on by %s", signerID, target.Email)
		}
		return nil
	}

	return domain.Forbiddenf("operation %q is not permitted", op)
}
