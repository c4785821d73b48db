package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TemplateStore = (*TemplateStore)(nil)

// TemplateStore implements driven.TemplateStore in memory
type TemplateStore struct {
	db *DB
}

// NewTemplateStore creates a new TemplateStore
func NewTemplateStore(db *DB) *TemplateStore {
	return &TemplateStore{db: db}
}

// Save creates or updates a template
func (s *TemplateStore) Save(_ context.Context, tmpl *domain.Template) error {
	txn := s.db.db.Txn(true)
	defer txn.Abort()

	if err := txn.Insert(tblTemplates, tmpl.Clone()); err != nil {
		return fmt.Errorf("save template %s: %w", tmpl.ID, err)
	}
	txn.Commit()
	return nil
}

// Get retrieves a template by ID
func (s *TemplateStore) Get(_ context.Context, id string) (*domain.Template, error) {
	txn := s.db.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblTemplates, "id", id)
	if err != nil {
		return nil, fmt.Errorf("get template %s: %w", id, err)
	}
	if raw == nil {
		return nil, domain.NotFoundf("template %s not found", id)
	}
	return raw.(*domain.Template).Clone(), nil
}

// ListByOwner returns an owner's templates, newest first
func (s *TemplateStore) ListByOwner(_ context.Context, ownerID string) ([]*domain.Template, error) {
	txn := s.db.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(tblTemplates, "owner_id", ownerID)
	if err != nil {
		return nil, fmt.Errorf("list templates for %s: %w", ownerID, err)
	}

	templates := []*domain.Template{}
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		templates = append(templates, raw.(*domain.Template).Clone())
	}
	sort.Slice(templates, func(i, j int) bool {
		return templates[i].CreatedAt.After(templates[j].CreatedAt)
	})
	return templates, nil
}

// Delete removes a template
func (s *TemplateStore) Delete(_ context.Context, id string) error {
	txn := s.db.db.Txn(true)
	defer txn.Abort()

	n, err := txn.DeleteAll(tblTemplates, "id", id)
	if err != nil {
		return fmt.Errorf("delete template %s: %w", id, err)
	}
	if n == 0 {
		return domain.NotFoundf("template %s not found", id)
	}
	txn.Commit()
	return nil
}
