package domain

import (
	"fmt"
	"sort"
	"time"
)

// Outcome describes the side effects of a transition on a document.
// The caller commits the mutated document together with the events.
type Outcome struct {
	Events    []EventType
	Notified  []*Signer // signers newly moved to notified
	Completed bool
	Voided    bool
}

// Changed reports whether the transition mutated the document
func (o *Outcome) Changed() bool {
	return o != nil && len(o.Events) > 0
}

// Send moves a draft into the pending signing workflow and releases the
// first signers according to the workflow type.
func (d *Document) Send(now time.Time) (*Outcome, error) {
	if d.Status != DocumentStatusDraft {
		return nil, InvalidStatef("document is %s; only drafts can be sent", d.Status)
	}
	if violations := d.sendViolations(); len(violations) > 0 {
		return nil, NewValidationError(CodeValidation, "document is not ready to send", violations)
	}

	d.Status = DocumentStatusPending
	d.SentAt = timePtr(now)

	out := &Outcome{Events: []EventType{EventSent}}
	if d.Config.WorkflowType == WorkflowSequential {
		out.Notified = d.releaseNextTier(now)
	} else {
		for _, s := range d.Signers {
			s.Status = SignerStatusNotified
			s.NotifiedAt = timePtr(now)
			out.Notified = append(out.Notified, s)
		}
	}
	return out, nil
}

func (d *Document) sendViolations() []Violation {
	var violations []Violation
	if !d.Config.WorkflowType.Valid() {
		violations = append(violations, Violation{Field: "configuration.workflow_type", Message: "must be parallel or sequential"})
	}
	if len(d.Files) == 0 {
		violations = append(violations, Violation{Field: "files", Message: "at least one file is required"})
	}

	hasBlocking := false
	for _, s := range d.Signers {
		if s.Role.Blocking() {
			hasBlocking = true
			break
		}
	}
	if !hasBlocking {
		violations = append(violations, Violation{Field: "signers", Message: "at least one signer with role sign or approve is required"})
	}

	fieldCount := make(map[string]int)
	for _, f := range d.Files {
		for _, field := range f.Fields {
			path := fieldPath(f.ID, field.ID)
			signer := d.FindSigner(field.AssignedTo)
			switch {
			case signer == nil:
				violations = append(violations, Violation{Field: path, Message: "assigned_to does not reference a signer on this document"})
			case !signer.Role.Blocking():
				violations = append(violations, Violation{Field: path, Message: fmt.Sprintf("assigned signer %s has role %s", signer.Email, signer.Role)})
			default:
				fieldCount[signer.ID]++
			}
		}
	}

	if d.Config.RequireAllSignatures {
		for _, s := range d.Signers {
			if s.Role == SignerRoleSign && fieldCount[s.ID] == 0 {
				violations = append(violations, Violation{Field: "signers." + s.ID, Message: "signer " + s.Email + " has no assigned fields"})
			}
		}
	}
	return violations
}

// RecordView marks a notified signer as having viewed the document.
// Repeated views are no-ops.
func (d *Document) RecordView(signerID string, now time.Time) (*Outcome, error) {
	if d.Status != DocumentStatusPending {
		return nil, InvalidStatef("document is %s; views are only recorded while pending", d.Status)
	}
	signer := d.FindSigner(signerID)
	if signer == nil {
		return nil, NotFoundf("signer %s not found", signerID)
	}

	switch signer.Status {
	case SignerStatusNotified:
		signer.Status = SignerStatusViewed
		signer.ViewedAt = timePtr(now)
		return &Outcome{Events: []EventType{EventViewed}}, nil
	case SignerStatusViewed, SignerStatusCompleted:
		return &Outcome{}, nil
	default:
		return nil, InvalidStatef("signer %s is %s and cannot view the document", signerID, signer.Status)
	}
}

// SubmitSignature writes the signer's field values, completes the signer and
// advances the workflow. Values are keyed by field ID and are write-once.
func (d *Document) SubmitSignature(signerID string, values map[string]string, now time.Time) (*Outcome, error) {
	if d.Status != DocumentStatusPending {
		return nil, InvalidStatef("document is %s; signatures are only accepted while pending", d.Status)
	}
	signer := d.FindSigner(signerID)
	if signer == nil {
		return nil, NotFoundf("signer %s not found", signerID)
	}
	if !signer.Role.Blocking() {
		return nil, InvalidStatef("signer %s has role %s and does not sign", signer.Email, signer.Role)
	}
	switch signer.Status {
	case SignerStatusCompleted:
		return nil, Conflictf("signer %s has already signed", signer.Email)
	case SignerStatusNotified, SignerStatusViewed:
	default:
		return nil, InvalidStatef("signer %s is %s and cannot sign yet", signer.Email, signer.Status)
	}

	assigned := d.FieldsAssignedTo(signerID)
	byID := make(map[string]*AssignedField, len(assigned))
	for _, af := range assigned {
		byID[af.ID] = af
	}

	keys := make([]string, 0, len(values))
	for id := range values {
		keys = append(keys, id)
	}
	sort.Strings(keys)

	var invalid []Violation
	for _, id := range keys {
		af, ok := byID[id]
		if !ok {
			invalid = append(invalid, Violation{Field: "fields." + id, Message: "field is not assigned to this signer"})
			continue
		}
		if af.HasValue() {
			return nil, Conflictf("field %s already has a value", id)
		}
		if values[id] == "" {
			continue
		}
		if problem := af.ValueProblem(values[id]); problem != "" {
			invalid = append(invalid, Violation{Field: fieldPath(af.FileID, id), Message: problem})
		}
	}
	if len(invalid) > 0 {
		return nil, NewValidationError(CodeFieldValidation, "submitted values are invalid", invalid)
	}

	var missing []Violation
	for _, af := range assigned {
		if af.Required && values[af.ID] == "" {
			missing = append(missing, Violation{Field: fieldPath(af.FileID, af.ID), Message: "required field has no value"})
		}
	}
	if len(missing) > 0 {
		return nil, NewValidationError(CodeMissingFields, "required fields are missing", missing)
	}

	for _, af := range assigned {
		if v := values[af.ID]; v != "" {
			af.Value = &v
			af.FilledAt = timePtr(now)
		}
	}
	signer.Status = SignerStatusCompleted
	signer.CompletedAt = timePtr(now)

	out := &Outcome{Events: []EventType{EventSigned}}
	if d.allBlockingCompleted() {
		d.Status = DocumentStatusCompleted
		d.CompletedAt = timePtr(now)
		out.Events = append(out.Events, EventCompleted)
		out.Completed = true
		return out, nil
	}

	if d.Config.WorkflowType == WorkflowSequential && d.tierSettled(signer.SequenceIndex) {
		out.Notified = d.releaseNextTier(now)
	}
	return out, nil
}

// Decline records a signer's refusal. Any decline voids the whole document.
func (d *Document) Decline(signerID, reason string, now time.Time) (*Outcome, error) {
	if d.Status != DocumentStatusPending {
		return nil, InvalidStatef("document is %s; declines are only accepted while pending", d.Status)
	}
	signer := d.FindSigner(signerID)
	if signer == nil {
		return nil, NotFoundf("signer %s not found", signerID)
	}
	if !signer.Role.Blocking() {
		return nil, InvalidStatef("signer %s has role %s and cannot decline", signer.Email, signer.Role)
	}
	if !signer.CanAct() {
		return nil, InvalidStatef("signer %s is %s and cannot decline", signer.Email, signer.Status)
	}

	signer.Status = SignerStatusDeclined
	signer.DeclineReason = reason
	signer.DeclinedAt = timePtr(now)

	d.Status = DocumentStatusVoided
	d.VoidedAt = timePtr(now)
	d.VoidReason = "declined by " + signer.Email
	if reason != "" {
		d.VoidReason += ": " + reason
	}
	return &Outcome{Events: []EventType{EventDeclined, EventVoided}, Voided: true}, nil
}

// Void cancels a draft or pending document. No further transitions are accepted.
func (d *Document) Void(reason string, now time.Time) (*Outcome, error) {
	if !d.Status.CanTransitionTo(DocumentStatusVoided) {
		return nil, InvalidStatef("document is %s and cannot be voided", d.Status)
	}
	d.Status = DocumentStatusVoided
	d.VoidedAt = timePtr(now)
	d.VoidReason = reason
	return &Outcome{Events: []EventType{EventVoided}, Voided: true}, nil
}

// releaseNextTier notifies every pending signer at the lowest remaining
// sequence index. A tier with no blocking signer is released and skipped.
func (d *Document) releaseNextTier(now time.Time) []*Signer {
	var released []*Signer
	for {
		tier, ok := d.lowestPendingTier()
		if !ok {
			return released
		}
		blocking := false
		for _, s := range d.Signers {
			if s.Status == SignerStatusPending && s.SequenceIndex == tier {
				s.Status = SignerStatusNotified
				s.NotifiedAt = timePtr(now)
				released = append(released, s)
				if s.Role.Blocking() {
					blocking = true
				}
			}
		}
		if blocking {
			return released
		}
	}
}

func (d *Document) lowestPendingTier() (int, bool) {
	found := false
	lowest := 0
	for _, s := range d.Signers {
		if s.Status != SignerStatusPending {
			continue
		}
		if !found || s.SequenceIndex < lowest {
			lowest = s.SequenceIndex
			found = true
		}
	}
	return lowest, found
}

// tierSettled reports whether every blocking signer at index has completed
func (d *Document) tierSettled(index int) bool {
	for _, s := range d.Signers {
		if s.SequenceIndex == index && s.Role.Blocking() && s.Status != SignerStatusCompleted {
			return false
		}
	}
	return true
}

func (d *Document) allBlockingCompleted() bool {
	for _, s := range d.Signers {
		if s.Role.Blocking() && s.Status != SignerStatusCompleted {
			return false
		}
	}
	return true
}

func fieldPath(fileID, fieldID string) string {
	return "files." + fileID + ".fields." + fieldID
}
