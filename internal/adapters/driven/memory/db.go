// Package memory provides go-memdb backed implementations of the driven
// ports. It backs the single-process deployment (STORAGE_BACKEND=memory)
// and the end-to-end feature tests. Nothing survives a restart.
package memory

import (
	"fmt"

	"github.com/hashicorp/go-memdb"
)

const (
	tblUsers         = "users"
	tblSessions      = "sessions"
	tblDocuments     = "documents"
	tblEvents        = "audit_events"
	tblTemplates     = "templates"
	tblNotifications = "notifications"
	tblLocks         = "locks"
)

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblUsers: {
			Name: tblUsers,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"email": {
					Name:    "email",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Email", Lowercase: true},
				},
			},
		},
		tblSessions: {
			Name: tblSessions,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"token": {
					Name:    "token",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Token"},
				},
				"refresh_token": {
					Name:         "refresh_token",
					Unique:       true,
					AllowMissing: true,
					Indexer:      &memdb.StringFieldIndex{Field: "RefreshToken"},
				},
				"user_id": {
					Name:    "user_id",
					Indexer: &memdb.StringFieldIndex{Field: "UserID"},
				},
			},
		},
		tblDocuments: {
			Name: tblDocuments,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"owner_id": {
					Name:    "owner_id",
					Indexer: &memdb.StringFieldIndex{Field: "OwnerID"},
				},
				"participants": {
					Name:         "participants",
					AllowMissing: true,
					Indexer:      &memdb.StringSliceFieldIndex{Field: "Participants"},
				},
			},
		},
		tblEvents: {
			Name: tblEvents,
			Indexes: map[string]*memdb.IndexSchema{
				// Key is "<document id>/<zero padded sequence>", so a prefix
				// scan returns one document's trail in sequence order.
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Key"},
				},
				"event_id": {
					Name:    "event_id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "EventID"},
				},
				"document_id": {
					Name:    "document_id",
					Indexer: &memdb.StringFieldIndex{Field: "DocumentID"},
				},
			},
		},
		tblTemplates: {
			Name: tblTemplates,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"owner_id": {
					Name:    "owner_id",
					Indexer: &memdb.StringFieldIndex{Field: "OwnerID"},
				},
			},
		},
		tblNotifications: {
			Name: tblNotifications,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"status": {
					Name:    "status",
					Indexer: &memdb.StringFieldIndex{Field: "Status"},
				},
			},
		},
		tblLocks: {
			Name: tblLocks,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Name"},
				},
			},
		},
	},
}

// DB is an in-memory database shared by the memory stores
type DB struct {
	db *memdb.MemDB
}

// New creates an empty in-memory database
func New() (*DB, error) {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}
	return &DB{db: db}, nil
}
