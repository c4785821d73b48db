package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New()
	require.NoError(t, err)
	return db
}

func testDocument(id, owner string, updated time.Time, signers ...string) *domain.Document {
	doc := &domain.Document{
		ID:        id,
		Title:     "Doc " + id,
		Status:    domain.DocumentStatusDraft,
		CreatedBy: owner,
		Version:   1,
		AuditSeq:  1,
		Files: []*domain.File{
			{ID: id + "-file", Name: "a.pdf", MimeType: "application/pdf", PageCount: 1, BlobKey: "blob-" + id},
		},
		CreatedAt: updated,
		UpdatedAt: updated,
	}
	for i, email := range signers {
		doc.Signers = append(doc.Signers, &domain.Signer{
			ID:    fmt.Sprintf("%s-s%d", id, i),
			Email: email,
			Role:  domain.SignerRoleSign,
		})
	}
	return doc
}

func event(doc *domain.Document, seq int64, typ domain.EventType) *domain.AuditEvent {
	return &domain.AuditEvent{
		ID:         fmt.Sprintf("%s-e%d", doc.ID, seq),
		DocumentID: doc.ID,
		Sequence:   seq,
		Type:       typ,
		Actor:      doc.CreatedBy,
		Timestamp:  time.Now(),
	}
}

func TestDocumentStore_CreateAndGet(t *testing.T) {
	store := NewDocumentStore(newTestDB(t))
	ctx := context.Background()
	doc := testDocument("doc-1", "owner-1", time.Now(), "alice@example.com")

	require.NoError(t, store.Create(ctx, doc, []*domain.AuditEvent{event(doc, 1, domain.EventUploaded)}))

	got, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, doc.Title, got.Title)
	assert.Equal(t, "blob-doc-1", got.Files[0].BlobKey)
	assert.Equal(t, int64(1), got.AuditSeq)

	got.Title = "mutated"
	again, _ := store.Get(ctx, "doc-1")
	assert.Equal(t, doc.Title, again.Title, "stored document must not alias returned copies")

	err = store.Create(ctx, doc, nil)
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists))

	_, err = store.Get(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDocumentStore_CommitChecksVersion(t *testing.T) {
	store := NewDocumentStore(newTestDB(t))
	ctx := context.Background()
	doc := testDocument("doc-1", "owner-1", time.Now())
	require.NoError(t, store.Create(ctx, doc, []*domain.AuditEvent{event(doc, 1, domain.EventUploaded)}))

	next := doc.Clone()
	next.Version = 2
	next.AuditSeq = 2
	next.Status = domain.DocumentStatusPending
	require.NoError(t, store.Commit(ctx, next, 1, []*domain.AuditEvent{event(next, 2, domain.EventSent)}))

	stale := doc.Clone()
	stale.Version = 2
	err := store.Commit(ctx, stale, 1, []*domain.AuditEvent{event(stale, 2, domain.EventVoided)})
	assert.True(t, errors.Is(err, domain.ErrConflict))

	got, _ := store.Get(ctx, "doc-1")
	assert.Equal(t, domain.DocumentStatusPending, got.Status)

	events, err := store.ListByDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, events, 2, "a rejected commit must not leave events behind")
	assert.Equal(t, domain.EventSent, events[1].Type)

	err = store.Commit(ctx, testDocument("missing", "owner-1", time.Now()), 1, nil)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDocumentStore_DuplicateSequenceRollsBack(t *testing.T) {
	store := NewDocumentStore(newTestDB(t))
	ctx := context.Background()
	doc := testDocument("doc-1", "owner-1", time.Now())
	require.NoError(t, store.Create(ctx, doc, []*domain.AuditEvent{event(doc, 1, domain.EventUploaded)}))

	next := doc.Clone()
	next.Version = 2
	next.Title = "changed"
	dup := event(next, 1, domain.EventFieldUpdated)
	dup.ID = "other"
	err := store.Commit(ctx, next, 1, []*domain.AuditEvent{dup})
	assert.True(t, errors.Is(err, domain.ErrConflict))

	got, _ := store.Get(ctx, "doc-1")
	assert.Equal(t, int64(1), got.Version)
	assert.NotEqual(t, "changed", got.Title)
}

func TestDocumentStore_AuditTrailOrder(t *testing.T) {
	store := NewDocumentStore(newTestDB(t))
	ctx := context.Background()
	doc := testDocument("doc-1", "owner-1", time.Now())

	var events []*domain.AuditEvent
	for seq := int64(1); seq <= 12; seq++ {
		events = append(events, event(doc, seq, domain.EventViewed))
	}
	other := testDocument("doc-10", "owner-1", time.Now())
	require.NoError(t, store.Create(ctx, doc, events))
	require.NoError(t, store.Create(ctx, other, []*domain.AuditEvent{event(other, 1, domain.EventUploaded)}))

	got, err := store.ListByDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, got, 12)
	for i, e := range got {
		assert.Equal(t, int64(i+1), e.Sequence)
		assert.Equal(t, "doc-1", e.DocumentID)
	}

	none, err := store.ListByDocument(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDocumentStore_List(t *testing.T) {
	store := NewDocumentStore(newTestDB(t))
	ctx := context.Background()
	base := time.Now()

	owned := testDocument("a", "owner-1", base.Add(3*time.Second), "bob@example.com")
	assigned := testDocument("b", "owner-2", base.Add(2*time.Second), "Owner@Example.com")
	both := testDocument("c", "owner-1", base.Add(time.Second), "owner@example.com")
	unrelated := testDocument("d", "owner-2", base)
	pending := testDocument("e", "owner-1", base.Add(4*time.Second))
	pending.Status = domain.DocumentStatusPending
	for _, doc := range []*domain.Document{owned, assigned, both, unrelated, pending} {
		require.NoError(t, store.Create(ctx, doc, nil))
	}

	ids := func(docs []*domain.Document) []string {
		out := make([]string, len(docs))
		for i, d := range docs {
			out[i] = d.ID
		}
		return out
	}

	tests := []struct {
		name      string
		filter    driven.DocumentFilter
		wantIDs   []string
		wantTotal int
	}{
		{"owned", driven.DocumentFilter{Scope: domain.ScopeOwned, OwnerID: "owner-1"}, []string{"e", "a", "c"}, 3},
		{"assigned ignores case", driven.DocumentFilter{Scope: domain.ScopeAssigned, ParticipantEmail: "OWNER@example.com"}, []string{"b", "c"}, 2},
		{"all deduplicates", driven.DocumentFilter{Scope: domain.ScopeAll, OwnerID: "owner-1", ParticipantEmail: "owner@example.com"}, []string{"e", "a", "b", "c"}, 4},
		{"status", driven.DocumentFilter{Scope: domain.ScopeOwned, OwnerID: "owner-1", Status: domain.DocumentStatusPending}, []string{"e"}, 1},
		{"page", driven.DocumentFilter{Scope: domain.ScopeAll, OwnerID: "owner-1", ParticipantEmail: "owner@example.com", Limit: 2, Offset: 1}, []string{"a", "b"}, 4},
		{"offset past end", driven.DocumentFilter{Scope: domain.ScopeOwned, OwnerID: "owner-1", Offset: 10}, []string{}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, total, err := store.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
			assert.Equal(t, tt.wantIDs, ids(docs))
		})
	}
}

func TestDocumentStore_Delete(t *testing.T) {
	store := NewDocumentStore(newTestDB(t))
	ctx := context.Background()
	doc := testDocument("doc-1", "owner-1", time.Now())
	require.NoError(t, store.Create(ctx, doc, []*domain.AuditEvent{event(doc, 1, domain.EventUploaded)}))

	require.NoError(t, store.Delete(ctx, "doc-1"))

	_, err := store.Get(ctx, "doc-1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	events, _ := store.ListByDocument(ctx, "doc-1")
	assert.Empty(t, events)
	assert.True(t, errors.Is(store.Delete(ctx, "doc-1"), domain.ErrNotFound))
}
