package domain

import (
	"fmt"
	"sort"
	"strings"
)

// RequireDraft returns ErrInvalidState unless the document is still a draft
func (d *Document) RequireDraft() error {
	if d.Status != DocumentStatusDraft {
		return InvalidStatef("document is %s; only drafts can be edited", d.Status)
	}
	return nil
}

// ReplaceSigners validates and installs a new signer list.
// Existing signer IDs are kept when the same email reappears so that field
// assignments survive the edit. Under a sequential workflow signers are
// ordered by sequence index; equal indices form a tier.
func (d *Document) ReplaceSigners(signers []*Signer) []Violation {
	var violations []Violation
	seen := make(map[string]int, len(signers))
	for i, s := range signers {
		path := fmt.Sprintf("signers[%d]", i)
		if strings.TrimSpace(s.Name) == "" {
			violations = append(violations, Violation{Field: path + ".name", Message: "name is required"})
		}
		email := strings.ToLower(strings.TrimSpace(s.Email))
		if email == "" {
			violations = append(violations, Violation{Field: path + ".email", Message: "email is required"})
		} else if prev, dup := seen[email]; dup {
			violations = append(violations, Violation{Field: path + ".email", Message: fmt.Sprintf("duplicates signers[%d]", prev)})
		} else {
			seen[email] = i
		}
		if !s.Role.Valid() {
			violations = append(violations, Violation{Field: path + ".role", Message: "role must be sign, cc or approve"})
		}
		if s.SequenceIndex < 0 {
			violations = append(violations, Violation{Field: path + ".sequence_index", Message: "sequence_index must not be negative"})
		}
	}
	if len(violations) > 0 {
		return violations
	}

	next := make([]*Signer, len(signers))
	for i, s := range signers {
		c := s.Clone()
		c.Email = strings.TrimSpace(c.Email)
		if existing := d.SignerByEmail(c.Email); existing != nil {
			c.ID = existing.ID
		}
		c.Status = SignerStatusPending
		c.NotifiedAt, c.ViewedAt, c.CompletedAt, c.DeclinedAt = nil, nil, nil, nil
		c.DeclineReason = ""
		next[i] = c
	}
	d.Signers = next
	d.OrderSigners()
	return nil
}

// OrderSigners sorts a sequential document's signers by sequence index,
// keeping input order among equal indexes. Parallel documents are left as is.
func (d *Document) OrderSigners() {
	if d.Config.WorkflowType != WorkflowSequential {
		return
	}
	sort.SliceStable(d.Signers, func(i, j int) bool {
		return d.Signers[i].SequenceIndex < d.Signers[j].SequenceIndex
	})
}

// ValidateFields checks a candidate field set for file against the document's
// current signers. Every offending field is reported. Field IDs must be
// unique across the whole document, since signers submit values by field ID.
// On success each field's AssignedTo is normalised to a signer ID.
func (d *Document) ValidateFields(file *File, fields []*Field) []Violation {
	var violations []Violation
	seen := make(map[string]bool, len(fields))
	for _, other := range d.Files {
		if other.ID == file.ID {
			continue
		}
		for _, f := range other.Fields {
			seen[f.ID] = true
		}
	}
	for i, f := range fields {
		path := fmt.Sprintf("files.%s.fields[%d]", file.ID, i)
		if f.ID != "" {
			if seen[f.ID] {
				violations = append(violations, Violation{Field: path + ".id", Message: "duplicate field id " + f.ID})
			}
			seen[f.ID] = true
		}
		if len(f.Label) > MaxLabelLength {
			violations = append(violations, Violation{Field: path + ".label", Message: fmt.Sprintf("label must be at most %d characters", MaxLabelLength)})
		}
		if !f.Type.Valid() {
			violations = append(violations, Violation{Field: path + ".type", Message: fmt.Sprintf("unknown field type %q", f.Type)})
		}
		for _, p := range f.Position.Problems(file.PageCount) {
			violations = append(violations, Violation{Field: path + ".position", Message: p})
		}
		if strings.TrimSpace(f.AssignedTo) == "" {
			violations = append(violations, Violation{Field: path + ".assigned_to", Message: "assigned_to is required"})
		} else if s := d.ResolveSigner(f.AssignedTo); s == nil {
			violations = append(violations, Violation{Field: path + ".assigned_to", Message: fmt.Sprintf("%s is not a signer on this document", f.AssignedTo)})
		} else {
			f.AssignedTo = s.ID
		}
	}
	return violations
}

// DanglingFields reports fields whose assignee no longer exists
func (d *Document) DanglingFields() []Violation {
	var violations []Violation
	for _, f := range d.Files {
		for _, field := range f.Fields {
			if d.FindSigner(field.AssignedTo) == nil {
				violations = append(violations, Violation{
					Field:   fieldPath(f.ID, field.ID),
					Message: "assigned signer was removed from the document",
				})
			}
		}
	}
	return violations
}
