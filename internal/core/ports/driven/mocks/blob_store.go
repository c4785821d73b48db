package mocks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

// Ensure MockBlobStore implements BlobStore
var _ driven.BlobStore = (*MockBlobStore)(nil)

// MockBlobStore is a mock implementation of BlobStore for testing
type MockBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	next  int
	reads int

	// PutErr, when set, is returned by Put
	PutErr error
}

// NewMockBlobStore creates a new MockBlobStore
func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{blobs: make(map[string][]byte)}
}

func (m *MockBlobStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return "", m.PutErr
	}
	m.next++
	handle := fmt.Sprintf("blob-%d", m.next)
	m.blobs[handle] = append([]byte(nil), data...)
	return handle, nil
}

func (m *MockBlobStore) Get(ctx context.Context, handle string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[handle]
	if !ok {
		return nil, domain.NotFoundf("blob %s not found", handle)
	}
	m.reads++
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MockBlobStore) Delete(ctx context.Context, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, handle)
	return nil
}

// Helper methods for testing

// Count returns the number of stored blobs
func (m *MockBlobStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

// Reads returns how many times content was opened
func (m *MockBlobStore) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}
