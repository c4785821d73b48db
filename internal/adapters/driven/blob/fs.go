// Package blob stores uploaded file content. Content is written once under
// a generated handle and never modified.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.BlobStore = (*FSStore)(nil)

// FSStore keeps blobs as files below a root directory, fanned out by the
// first two bytes of the handle.
type FSStore struct {
	root string
}

// NewFSStore creates the root directory if needed
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FSStore{root: root}, nil
}

// Put writes data to a temporary file and renames it into place so a
// reader never sees a partial blob.
func (s *FSStore) Put(_ context.Context, data []byte, _ string) (string, error) {
	handle := uuid.NewString()
	path, _ := s.path(handle)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("store blob: %w", err)
	}
	return handle, nil
}

// Get opens the blob behind handle
func (s *FSStore) Get(_ context.Context, handle string) (io.ReadCloser, error) {
	path, err := s.path(handle)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.NotFoundf("blob %s not found", handle)
	}
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}

// Delete removes the blob. Unknown handles are ignored.
func (s *FSStore) Delete(_ context.Context, handle string) error {
	path, err := s.path(handle)
	if err != nil {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// path maps a handle to its file. Only UUID handles are accepted so a
// handle can never escape the root.
func (s *FSStore) path(handle string) (string, error) {
	id, err := uuid.Parse(handle)
	if err != nil {
		return "", domain.NotFoundf("blob %s not found", handle)
	}
	h := id.String()
	return filepath.Join(s.root, h[:2], h[2:4], h), nil
}
