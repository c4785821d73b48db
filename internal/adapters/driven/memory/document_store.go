package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-memdb"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.DocumentStore = (*DocumentStore)(nil)
	_ driven.AuditStore    = (*DocumentStore)(nil)
)

// documentRecord is the indexed row for a document. Doc is never mutated
// once inserted.
type documentRecord struct {
	ID           string
	OwnerID      string
	Participants []string
	Doc          *domain.Document
}

type eventRecord struct {
	Key        string
	EventID    string
	DocumentID string
	Event      *domain.AuditEvent
}

func eventKey(documentID string, sequence int64) string {
	return fmt.Sprintf("%s/%020d", documentID, sequence)
}

func newDocumentRecord(doc *domain.Document) *documentRecord {
	c := doc.Clone()
	return &documentRecord{
		ID:           c.ID,
		OwnerID:      c.CreatedBy,
		Participants: c.ParticipantEmails(),
		Doc:          c,
	}
}

// DocumentStore implements driven.DocumentStore and driven.AuditStore.
// A document change and its events commit in one memdb transaction.
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Create inserts a new document with its initial events
func (s *DocumentStore) Create(_ context.Context, doc *domain.Document, events []*domain.AuditEvent) error {
	txn := s.db.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(tblDocuments, "id", doc.ID)
	if err != nil {
		return fmt.Errorf("create document %s: %w", doc.ID, err)
	}
	if existing != nil {
		return domain.ErrAlreadyExists
	}
	if err := txn.Insert(tblDocuments, newDocumentRecord(doc)); err != nil {
		return fmt.Errorf("create document %s: %w", doc.ID, err)
	}
	if err := insertEvents(txn, events); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// Get retrieves a document by ID
func (s *DocumentStore) Get(_ context.Context, id string) (*domain.Document, error) {
	txn := s.db.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblDocuments, "id", id)
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	if raw == nil {
		return nil, domain.NotFoundf("document %s not found", id)
	}
	return raw.(*documentRecord).Doc.Clone(), nil
}

// Commit replaces the stored document if its version is still expectedVersion
func (s *DocumentStore) Commit(_ context.Context, doc *domain.Document, expectedVersion int64, events []*domain.AuditEvent) error {
	txn := s.db.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblDocuments, "id", doc.ID)
	if err != nil {
		return fmt.Errorf("commit document %s: %w", doc.ID, err)
	}
	if raw == nil {
		return domain.NotFoundf("document %s not found", doc.ID)
	}
	if raw.(*documentRecord).Doc.Version != expectedVersion {
		return domain.Conflictf("document %s was modified concurrently; retry the request", doc.ID)
	}
	if err := txn.Insert(tblDocuments, newDocumentRecord(doc)); err != nil {
		return fmt.Errorf("commit document %s: %w", doc.ID, err)
	}
	if err := insertEvents(txn, events); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// List retrieves documents matching filter, most recently updated first
func (s *DocumentStore) List(_ context.Context, filter driven.DocumentFilter) ([]*domain.Document, int, error) {
	txn := s.db.db.Txn(false)
	defer txn.Abort()

	seen := make(map[string]*domain.Document)
	collect := func(index, value string) error {
		if value == "" {
			return nil
		}
		iter, err := txn.Get(tblDocuments, index, value)
		if err != nil {
			return fmt.Errorf("list documents by %s: %w", index, err)
		}
		for raw := iter.Next(); raw != nil; raw = iter.Next() {
			rec := raw.(*documentRecord)
			if filter.Status != "" && rec.Doc.Status != filter.Status {
				continue
			}
			seen[rec.ID] = rec.Doc
		}
		return nil
	}

	var err error
	switch filter.Scope {
	case domain.ScopeAssigned:
		err = collect("participants", strings.ToLower(filter.ParticipantEmail))
	case domain.ScopeAll:
		if err = collect("owner_id", filter.OwnerID); err == nil {
			err = collect("participants", strings.ToLower(filter.ParticipantEmail))
		}
	default:
		err = collect("owner_id", filter.OwnerID)
	}
	if err != nil {
		return nil, 0, err
	}

	matched := make([]*domain.Document, 0, len(seen))
	for _, doc := range seen {
		matched = append(matched, doc)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	total := len(matched)
	start := min(filter.Offset, total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}

	page := make([]*domain.Document, 0, end-start)
	for _, doc := range matched[start:end] {
		page = append(page, doc.Clone())
	}
	return page, total, nil
}

// Delete removes a document and its audit trail
func (s *DocumentStore) Delete(_ context.Context, id string) error {
	txn := s.db.db.Txn(true)
	defer txn.Abort()

	n, err := txn.DeleteAll(tblDocuments, "id", id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if n == 0 {
		return domain.NotFoundf("document %s not found", id)
	}
	if _, err := txn.DeleteAll(tblEvents, "document_id", id); err != nil {
		return fmt.Errorf("delete audit trail %s: %w", id, err)
	}
	txn.Commit()
	return nil
}

// Ping always succeeds
func (s *DocumentStore) Ping(_ context.Context) error {
	return nil
}

// ListByDocument returns a document's audit trail in sequence order
func (s *DocumentStore) ListByDocument(_ context.Context, documentID string) ([]*domain.AuditEvent, error) {
	txn := s.db.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(tblEvents, "id_prefix", documentID+"/")
	if err != nil {
		return nil, fmt.Errorf("list audit events %s: %w", documentID, err)
	}

	events := []*domain.AuditEvent{}
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		e := *raw.(*eventRecord).Event
		events = append(events, &e)
	}
	return events, nil
}

func insertEvents(txn *memdb.Txn, events []*domain.AuditEvent) error {
	for _, e := range events {
		key := eventKey(e.DocumentID, e.Sequence)
		existing, err := txn.First(tblEvents, "id", key)
		if err != nil {
			return fmt.Errorf("insert audit event: %w", err)
		}
		if existing != nil {
			return domain.Conflictf("audit sequence %d already recorded for document %s", e.Sequence, e.DocumentID)
		}
		ev := *e
		rec := &eventRecord{Key: key, EventID: e.ID, DocumentID: e.DocumentID, Event: &ev}
		if err := txn.Insert(tblEvents, rec); err != nil {
			return fmt.Errorf("insert audit event: %w", err)
		}
	}
	return nil
}
