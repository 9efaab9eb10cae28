package modsync

import (
	"context"
	"io"
)

// BlobStore holds verified file content keyed by its SHA-256 hash.
// All operations stream so large files never need to fit in memory.
type BlobStore interface {
	// PutContent stores content identified by its checksum.
	// Storing the same checksum twice is safe. size is the number of bytes in r.
	PutContent(ctx context.Context, checksum string, r io.Reader, size int64) error

	// GetContent writes the content for checksum to w.
	// Returns ErrNotFound if the blob does not exist.
	GetContent(ctx context.Context, checksum string, w io.Writer) error

	// HasContent reports whether a blob exists for checksum.
	HasContent(ctx context.Context, checksum string) (bool, error)

	// ValidateSetup verifies the store is reachable and writable.
	ValidateSetup(ctx context.Context) error
}
