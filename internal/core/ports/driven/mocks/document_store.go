package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

// Ensure MockDocumentStore implements DocumentStore and AuditStore
var (
	_ driven.DocumentStore = (*MockDocumentStore)(nil)
	_ driven.AuditStore    = (*MockDocumentStore)(nil)
)

// MockDocumentStore is an in-memory DocumentStore for testing. It stores
// deep copies so callers cannot mutate committed state, and enforces the
// version check on Commit.
type MockDocumentStore struct {
	mu        sync.RWMutex
	documents map[string]*domain.Document
	events    map[string][]*domain.AuditEvent

	// CommitFn, when set, runs before the version check and can inject errors
	CommitFn func(doc *domain.Document, expectedVersion int64) error
	// CreateErr, when set, is returned by Create
	CreateErr error

	commits int
}

// NewMockDocumentStore creates a new MockDocumentStore
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{
		documents: make(map[string]*domain.Document),
		events:    make(map[string][]*domain.AuditEvent),
	}
}

func (m *MockDocumentStore) Create(ctx context.Context, doc *domain.Document, events []*domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if _, ok := m.documents[doc.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.documents[doc.ID] = doc.Clone()
	m.events[doc.ID] = append(m.events[doc.ID], events...)
	return nil
}

func (m *MockDocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, domain.NotFoundf("document %s not found", id)
	}
	return doc.Clone(), nil
}

func (m *MockDocumentStore) Commit(ctx context.Context, doc *domain.Document, expectedVersion int64, events []*domain.AuditEvent) error {
	if m.CommitFn != nil {
		if err := m.CommitFn(doc, expectedVersion); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.documents[doc.ID]
	if !ok {
		return domain.NotFoundf("document %s not found", doc.ID)
	}
	if stored.Version != expectedVersion {
		return domain.Conflictf("document %s changed concurrently", doc.ID)
	}
	m.documents[doc.ID] = doc.Clone()
	m.events[doc.ID] = append(m.events[doc.ID], events...)
	m.commits++
	return nil
}

func (m *MockDocumentStore) List(ctx context.Context, filter driven.DocumentFilter) ([]*domain.Document, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*domain.Document
	for _, doc := range m.documents {
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		owned := doc.CreatedBy == filter.OwnerID
		assigned := doc.SignerByEmail(filter.ParticipantEmail) != nil
		switch filter.Scope {
		case domain.ScopeAssigned:
			if !assigned {
				continue
			}
		case domain.ScopeAll:
			if !owned && !assigned {
				continue
			}
		default:
			if !owned {
				continue
			}
		}
		matched = append(matched, doc.Clone())
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return strings.Compare(matched[i].ID, matched[j].ID) < 0
		}
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	total := len(matched)
	if filter.Offset >= total {
		return []*domain.Document{}, total, nil
	}
	end := total
	if filter.Limit > 0 && filter.Offset+filter.Limit < total {
		end = filter.Offset + filter.Limit
	}
	return matched[filter.Offset:end], total, nil
}

func (m *MockDocumentStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[id]; !ok {
		return domain.NotFoundf("document %s not found", id)
	}
	delete(m.documents, id)
	delete(m.events, id)
	return nil
}

func (m *MockDocumentStore) Ping(ctx context.Context) error {
	return nil
}

func (m *MockDocumentStore) ListByDocument(ctx context.Context, documentID string) ([]*domain.AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := make([]*domain.AuditEvent, len(m.events[documentID]))
	copy(events, m.events[documentID])
	return events, nil
}

// Helper methods for testing

// Put stores a document directly, bypassing the version check
func (m *MockDocumentStore) Put(doc *domain.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[doc.ID] = doc.Clone()
}

// Events returns the event types recorded for a document in order
func (m *MockDocumentStore) Events(documentID string) []domain.EventType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	types := make([]domain.EventType, len(m.events[documentID]))
	for i, e := range m.events[documentID] {
		types[i] = e.Type
	}
	return types
}

// Commits returns the number of successful commits
func (m *MockDocumentStore) Commits() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.commits
}
