package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.UserStore = (*UserStore)(nil)

// UserStore implements driven.UserStore in memory
type UserStore struct {
	db *DB
}

// NewUserStore creates a new UserStore
func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

// Save creates or updates a user. Emails are unique regardless of case.
func (s *UserStore) Save(_ context.Context, user *domain.User) error {
	txn := s.db.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblUsers, "email", user.Email)
	if err != nil {
		return fmt.Errorf("save user %s: %w", user.ID, err)
	}
	if raw != nil && raw.(*domain.User).ID != user.ID {
		return domain.ErrAlreadyExists
	}

	u := *user
	if err := txn.Insert(tblUsers, &u); err != nil {
		return fmt.Errorf("save user %s: %w", user.ID, err)
	}
	txn.Commit()
	return nil
}

// Get retrieves a user by ID
func (s *UserStore) Get(_ context.Context, id string) (*domain.User, error) {
	return s.first("id", id)
}

// GetByEmail retrieves a user by email, ignoring case
func (s *UserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return s.first("email", email)
}

// UpdateLastLogin updates the last login timestamp
func (s *UserStore) UpdateLastLogin(_ context.Context, id string) error {
	txn := s.db.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblUsers, "id", id)
	if err != nil {
		return fmt.Errorf("update last login %s: %w", id, err)
	}
	if raw == nil {
		return domain.ErrNotFound
	}

	u := *raw.(*domain.User)
	now := time.Now()
	u.LastLoginAt = &now
	u.UpdatedAt = now
	if err := txn.Insert(tblUsers, &u); err != nil {
		return fmt.Errorf("update last login %s: %w", id, err)
	}
	txn.Commit()
	return nil
}

func (s *UserStore) first(index, value string) (*domain.User, error) {
	txn := s.db.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblUsers, index, value)
	if err != nil {
		return nil, fmt.Errorf("find user by %s: %w", index, err)
	}
	if raw == nil {
		return nil, domain.ErrNotFound
	}
	u := *raw.(*domain.User)
	return &u, nil
}
