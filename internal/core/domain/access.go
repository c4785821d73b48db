package domain

// Operation is an action the access gate authorizes against a document
type Operation string

const (
	OpView       Operation = "view"
	OpEdit       Operation = "edit"
	OpSend       Operation = "send"
	OpVoid       Operation = "void"
	OpDelete     Operation = "delete"
	OpRecordView Operation = "record_view"
	OpSign       Operation = "sign"
	OpDecline    Operation = "decline"
)

// IsSignerAction reports whether op is performed by a signer on their own behalf
func (o Operation) IsSignerAction() bool {
	return o == OpRecordView || o == OpSign || o == OpDecline
}
