package driven

import (
	"context"
	"io"
)

// BlobStore holds uploaded file bytes. Content is written once and never
// modified. Handles are opaque and are never exposed to API clients.
type BlobStore interface {
	// Put stores data and returns a handle for later retrieval
	Put(ctx context.Context, data []byte, contentType string) (handle string, err error)

	// Get opens the content behind handle. The caller closes the reader.
	// Returns domain.ErrNotFound if the handle is unknown.
	Get(ctx context.Context, handle string) (io.ReadCloser, error)

	// Delete removes the content. Deleting an unknown handle is not an error.
	Delete(ctx context.Context, handle string) error
}
