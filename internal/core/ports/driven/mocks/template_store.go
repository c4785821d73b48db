package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

// Ensure MockTemplateStore implements TemplateStore
var _ driven.TemplateStore = (*MockTemplateStore)(nil)

// MockTemplateStore is a mock implementation of TemplateStore for testing
type MockTemplateStore struct {
	mu        sync.RWMutex
	templates map[string]*domain.Template
}

// NewMockTemplateStore creates a new MockTemplateStore
func NewMockTemplateStore() *MockTemplateStore {
	return &MockTemplateStore{templates: make(map[string]*domain.Template)}
}

func (m *MockTemplateStore) Save(ctx context.Context, tmpl *domain.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[tmpl.ID] = tmpl.Clone()
	return nil
}

func (m *MockTemplateStore) Get(ctx context.Context, id string) (*domain.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tmpl, ok := m.templates[id]
	if !ok {
		return nil, domain.NotFoundf("template %s not found", id)
	}
	return tmpl.Clone(), nil
}

func (m *MockTemplateStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := []*domain.Template{}
	for _, tmpl := range m.templates {
		if tmpl.OwnerID == ownerID {
			result = append(result, tmpl.Clone())
		}
	}
	return result, nil
}

func (m *MockTemplateStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[id]; !ok {
		return domain.NotFoundf("template %s not found", id)
	}
	delete(m.templates, id)
	return nil
}
