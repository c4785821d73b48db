package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.DocumentStore = (*DocumentStore)(nil)
	_ driven.AuditStore    = (*DocumentStore)(nil)
)

// DocumentStore implements driven.DocumentStore and driven.AuditStore using
// PostgreSQL. A document and the audit events produced by the same change
// are written in one transaction.
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// documentBody is the JSONB form of a document. Blob handles are kept out
// of the public JSON shape and stored beside it.
type documentBody struct {
	*domain.Document
	BlobKeys map[string]string `json:"blob_keys"`
}

func encodeDocument(doc *domain.Document) ([]byte, error) {
	keys := make(map[string]string, len(doc.Files))
	for _, f := range doc.Files {
		keys[f.ID] = f.BlobKey
	}
	return json.Marshal(documentBody{Document: doc, BlobKeys: keys})
}

func decodeDocument(body []byte, auditSeq int64) (*domain.Document, error) {
	rec := documentBody{Document: &domain.Document{}}
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	for _, f := range rec.Files {
		f.BlobKey = rec.BlobKeys[f.ID]
	}
	rec.AuditSeq = auditSeq
	return rec.Document, nil
}

// Create inserts a new document with its initial events
func (s *DocumentStore) Create(ctx context.Context, doc *domain.Document, events []*domain.AuditEvent) error {
	body, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO documents (id, owner_id, status, participants, version, audit_seq, body, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`
		_, err := tx.ExecContext(ctx, query,
			doc.ID,
			doc.CreatedBy,
			string(doc.Status),
			pq.Array(doc.ParticipantEmails()),
			doc.Version,
			doc.AuditSeq,
			body,
			doc.CreatedAt,
			doc.UpdatedAt,
		)
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		return insertEvents(ctx, tx, events)
	})
}

// Get retrieves a document by ID
func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	var body []byte
	var auditSeq int64
	err := s.db.QueryRowContext(ctx, `SELECT body, audit_seq FROM documents WHERE id = $1`, id).Scan(&body, &auditSeq)
	if err == sql.ErrNoRows {
		return nil, domain.NotFoundf("document %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}
	return decodeDocument(body, auditSeq)
}

// Commit replaces the stored document if its version still equals
// expectedVersion, and appends events in the same transaction.
func (s *DocumentStore) Commit(ctx context.Context, doc *domain.Document, expectedVersion int64, events []*domain.AuditEvent) error {
	body, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE documents
			SET status = $1, participants = $2, version = $3, audit_seq = $4, body = $5, updated_at = $6
			WHERE id = $7 AND version = $8
		`
		result, err := tx.ExecContext(ctx, query,
			string(doc.Status),
			pq.Array(doc.ParticipantEmails()),
			doc.Version,
			doc.AuditSeq,
			body,
			doc.UpdatedAt,
			doc.ID,
			expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM documents WHERE id = $1)`, doc.ID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return domain.NotFoundf("document %s not found", doc.ID)
			}
			return domain.Conflictf("document %s was modified concurrently; retry the request", doc.ID)
		}
		return insertEvents(ctx, tx, events)
	})
}

// List retrieves documents matching filter, most recently updated first
func (s *DocumentStore) List(ctx context.Context, filter driven.DocumentFilter) ([]*domain.Document, int, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch filter.Scope {
	case domain.ScopeAssigned:
		where = append(where, arg(strings.ToLower(filter.ParticipantEmail))+" = ANY(participants)")
	case domain.ScopeAll:
		where = append(where, fmt.Sprintf("(owner_id = %s OR %s = ANY(participants))", arg(filter.OwnerID), arg(strings.ToLower(filter.ParticipantEmail))))
	default:
		where = append(where, "owner_id = "+arg(filter.OwnerID))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(string(filter.Status)))
	}
	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	query := "SELECT body, audit_seq FROM documents" + clause + " ORDER BY updated_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := []*domain.Document{}
	for rows.Next() {
		var body []byte
		var auditSeq int64
		if err := rows.Scan(&body, &auditSeq); err != nil {
			return nil, 0, fmt.Errorf("scan document: %w", err)
		}
		doc, err := decodeDocument(body, auditSeq)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// Delete removes a document. Audit events cascade.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.NotFoundf("document %s not found", id)
	}
	return nil
}

// Ping checks database connectivity
func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// ListByDocument returns a document's audit trail in sequence order
func (s *DocumentStore) ListByDocument(ctx context.Context, documentID string) ([]*domain.AuditEvent, error) {
	query := `
		SELECT id, document_id, sequence, event_type, actor, occurred_at, metadata
		FROM audit_events
		WHERE document_id = $1
		ORDER BY sequence ASC
	`
	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events := []*domain.AuditEvent{}
	for rows.Next() {
		var e domain.AuditEvent
		var metadata []byte
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Sequence, &e.Type, &e.Actor, &e.Timestamp, &metadata); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		if len(e.Metadata) == 0 {
			e.Metadata = nil
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func insertEvents(ctx context.Context, tx *sql.Tx, events []*domain.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO audit_events (id, document_id, sequence, event_type, actor, occurred_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("prepare audit insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		metadata, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		if e.Metadata == nil {
			metadata = []byte("{}")
		}
		_, err = stmt.ExecContext(ctx, e.ID, e.DocumentID, e.Sequence, string(e.Type), e.Actor, e.Timestamp, metadata)
		if isUniqueViolation(err) {
			return domain.Conflictf("audit sequence %d already recorded for document %s", e.Sequence, e.DocumentID)
		}
		if err != nil {
			return fmt.Errorf("insert audit event: %w", err)
		}
	}
	return nil
}
