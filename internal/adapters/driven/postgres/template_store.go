package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TemplateStore = (*TemplateStore)(nil)

// TemplateStore implements driven.TemplateStore using PostgreSQL.
// Template fields are stored as JSONB.
type TemplateStore struct {
	db *DB
}

// NewTemplateStore creates a new TemplateStore
func NewTemplateStore(db *DB) *TemplateStore {
	return &TemplateStore{db: db}
}

const templateColumns = `id, owner_id, name, description, fields, created_at, updated_at`

// Save creates or updates a template
func (s *TemplateStore) Save(ctx context.Context, tmpl *domain.Template) error {
	fields, err := json.Marshal(tmpl.Fields)
	if err != nil {
		return fmt.Errorf("encode template fields: %w", err)
	}

	query := `
		INSERT INTO templates (` + templateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			fields = EXCLUDED.fields,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		tmpl.ID,
		tmpl.OwnerID,
		tmpl.Name,
		tmpl.Description,
		fields,
		tmpl.CreatedAt,
		tmpl.UpdatedAt,
	)
	return err
}

// Get retrieves a template by ID
func (s *TemplateStore) Get(ctx context.Context, id string) (*domain.Template, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = $1`, id)
	tmpl, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, domain.NotFoundf("template %s not found", id)
	}
	return tmpl, err
}

// ListByOwner returns an owner's templates, newest first
func (s *TemplateStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Template, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []*domain.Template{}
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tmpl)
	}
	return templates, rows.Err()
}

// Delete removes a template
func (s *TemplateStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.NotFoundf("template %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*domain.Template, error) {
	var tmpl domain.Template
	var fields []byte
	if err := row.Scan(&tmpl.ID, &tmpl.OwnerID, &tmpl.Name, &tmpl.Description, &fields, &tmpl.CreatedAt, &tmpl.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fields, &tmpl.Fields); err != nil {
		return nil, fmt.Errorf("decode template fields: %w", err)
	}
	return &tmpl, nil
}
