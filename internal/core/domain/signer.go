package domain

import "time"

// SignerRole defines what a participant does with the document
type SignerRole string

const (
	SignerRoleSign    SignerRole = "sign"
	SignerRoleCC      SignerRole = "cc"
	SignerRoleApprove SignerRole = "approve"
)

// Valid reports whether r is a known role
func (r SignerRole) Valid() bool {
	return r == SignerRoleSign || r == SignerRoleCC || r == SignerRoleApprove
}

// Blocking reports whether signers with this role must complete before the
// document can complete. cc never blocks.
func (r SignerRole) Blocking() bool {
	return r == SignerRoleSign || r == SignerRoleApprove
}

// SignerStatus is a participant's progress within a pending document
type SignerStatus string

const (
	SignerStatusPending   SignerStatus = "pending"
	SignerStatusNotified  SignerStatus = "notified"
	SignerStatusViewed    SignerStatus = "viewed"
	SignerStatusCompleted SignerStatus = "completed"
	SignerStatusDeclined  SignerStatus = "declined"
)

// Signer is a participant with a role and a position in the signing order
type Signer struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Email         string       `json:"email"`
	Role          SignerRole   `json:"role"`
	SequenceIndex int          `json:"sequence_index"`
	Status        SignerStatus `json:"status"`
	DeclineReason string       `json:"decline_reason,omitempty"`
	NotifiedAt    *time.Time   `json:"notified_at,omitempty"`
	ViewedAt      *time.Time   `json:"viewed_at,omitempty"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
	DeclinedAt    *time.Time   `json:"declined_at,omitempty"`
}

// CanAct reports whether the signer may sign or decline right now
func (s *Signer) CanAct() bool {
	return s.Status == SignerStatusNotified || s.Status == SignerStatusViewed
}

// Clone returns a deep copy of the signer
func (s *Signer) Clone() *Signer {
	c := *s
	c.NotifiedAt = cloneTime(s.NotifiedAt)
	c.ViewedAt = cloneTime(s.ViewedAt)
	c.CompletedAt = cloneTime(s.CompletedAt)
	c.DeclinedAt = cloneTime(s.DeclinedAt)
	return &c
}
