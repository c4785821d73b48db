package domain

import "time"

// EventType identifies a state-changing action on a document
type EventType string

const (
	EventUploaded     EventType = "uploaded"
	EventFieldUpdated EventType = "field_updated"
	EventSent         EventType = "sent"
	EventViewed       EventType = "viewed"
	EventSigned       EventType = "signed"
	EventDeclined     EventType = "declined"
	EventCompleted    EventType = "completed"
	EventVoided       EventType = "voided"
)

// AuditEvent is an immutable, ordered record of an action on a document.
// Sequence is strictly increasing per document in commit order; Timestamp is
// informational only.
type AuditEvent struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Sequence   int64             `json:"sequence"`
	Type       EventType         `json:"event_type"`
	Actor      string            `json:"actor"`
	Timestamp  time.Time         `json:"timestamp"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// RequestMeta carries request details recorded with audit events.
// The engine treats it as opaque.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// ToMetadata flattens the request details into event metadata
func (m RequestMeta) ToMetadata() map[string]string {
	md := make(map[string]string, 2)
	if m.IPAddress != "" {
		md["ip"] = m.IPAddress
	}
	if m.UserAgent != "" {
		md["user_agent"] = m.UserAgent
	}
	return md
}
