package domain

import "time"

// Template is a named, reusable field set. Fields reference a signer slot
// (a role placeholder such as "buyer") rather than a concrete signer.
type Template struct {
	ID          string           `json:"id"`
	OwnerID     string           `json:"owner_id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Fields      []*TemplateField `json:"fields"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// TemplateField is field geometry without a value or concrete assignee
type TemplateField struct {
	Type     FieldType `json:"type"`
	Position Position  `json:"position"`
	Slot     string    `json:"slot"`
	Required bool      `json:"required"`
	Label    string    `json:"label,omitempty"`
}

// Clone returns a deep copy of the template
func (t *Template) Clone() *Template {
	c := *t
	c.Fields = make([]*TemplateField, len(t.Fields))
	for i, f := range t.Fields {
		fc := *f
		c.Fields[i] = &fc
	}
	return &c
}
