package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldType is the kind of input a signer fills in
type FieldType string

const (
	FieldTypeSignature FieldType = "signature"
	FieldTypeInitials  FieldType = "initials"
	FieldTypeDate      FieldType = "date"
	FieldTypeText      FieldType = "text"
	FieldTypeCheckbox  FieldType = "checkbox"
)

// MaxLabelLength bounds the caption shown beside a field
const MaxLabelLength = 255

// Valid reports whether t is a known field type
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeSignature, FieldTypeInitials, FieldTypeDate, FieldTypeText, FieldTypeCheckbox:
		return true
	}
	return false
}

// Position places a field on a page. Coordinates are percentages of the page
// bounding box so placement is resolution-independent.
type Position struct {
	PageNumber    int     `json:"page_number"`
	LeftPercent   float64 `json:"left_percent"`
	TopPercent    float64 `json:"top_percent"`
	WidthPercent  float64 `json:"width_percent"`
	HeightPercent float64 `json:"height_percent"`
}

// Problems returns every geometry problem for a page with pageCount pages
func (p Position) Problems(pageCount int) []string {
	var problems []string
	if p.PageNumber < 1 {
		problems = append(problems, "page_number must be at least 1")
	} else if pageCount > 0 && p.PageNumber > pageCount {
		problems = append(problems, fmt.Sprintf("page_number %d exceeds page count %d", p.PageNumber, pageCount))
	}
	check := func(name string, v float64) {
		if v < 0 || v > 100 {
			problems = append(problems, name+" must be between 0 and 100")
		}
	}
	check("left_percent", p.LeftPercent)
	check("top_percent", p.TopPercent)
	check("width_percent", p.WidthPercent)
	check("height_percent", p.HeightPercent)
	if p.WidthPercent <= 0 {
		problems = append(problems, "width_percent must be positive")
	}
	if p.HeightPercent <= 0 {
		problems = append(problems, "height_percent must be positive")
	}
	if p.LeftPercent+p.WidthPercent > 100 {
		problems = append(problems, "left_percent + width_percent exceeds 100")
	}
	if p.TopPercent+p.HeightPercent > 100 {
		problems = append(problems, "top_percent + height_percent exceeds 100")
	}
	return problems
}

// Field is a positioned, typed input bound to one file and one signer
type Field struct {
	ID         string     `json:"id"`
	Type       FieldType  `json:"type"`
	Position   Position   `json:"position"`
	AssignedTo string     `json:"assigned_to"` // signer ID
	Required   bool       `json:"required"`
	Label      string     `json:"label,omitempty"`
	Value      *string    `json:"value"`
	FilledAt   *time.Time `json:"filled_at,omitempty"`
}

// HasValue reports whether the field was filled in
func (f *Field) HasValue() bool {
	return f.Value != nil && *f.Value != ""
}

// Clone returns a deep copy of the field
func (f *Field) Clone() *Field {
	c := *f
	if f.Value != nil {
		v := *f.Value
		c.Value = &v
	}
	c.FilledAt = cloneTime(f.FilledAt)
	return &c
}

// ValueProblem returns a description of why value is not acceptable for the
// field type, or "" if it is acceptable.
func (f *Field) ValueProblem(value string) string {
	switch f.Type {
	case FieldTypeDate:
		if _, err := time.Parse("2006-01-02", value); err == nil {
			return ""
		}
		if _, err := time.Parse(time.RFC3339, value); err == nil {
			return ""
		}
		return "date must be YYYY-MM-DD or RFC 3339"
	case FieldTypeCheckbox:
		if _, err := strconv.ParseBool(value); err != nil {
			return "checkbox value must be true or false"
		}
	case FieldTypeSignature, FieldTypeInitials:
		if strings.TrimSpace(value) == "" {
			return "value must not be blank"
		}
	}
	return ""
}

// AssignedField is a field together with the file it lives on
type AssignedField struct {
	FileID string `json:"file_id"`
	*Field
}
