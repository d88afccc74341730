package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes one object in cold storage.
type BlobInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// BlobWriter uploads objects to cold storage.
type BlobWriter interface {
	// Put uploads data in a single request.
	Put(ctx context.Context, path string, data io.Reader, contentType string) error

	// PutMultipart uploads data in parts of partSize bytes. Intended for
	// payloads too large for a single Put.
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves objects and object listings from cold storage.
type BlobReader interface {
	// Get returns the object body. The caller closes the reader.
	// Returns ErrNotFound if no object exists at path.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// List returns metadata for every object whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}

// Archiver moves aged price snapshots out of the primary store.
type Archiver interface {
	// ArchiveSnapshots uploads every snapshot captured strictly before the
	// cutoff and deletes the uploaded rows from the primary store once the
	// upload has been read back and verified. Returns the archived row count.
	ArchiveSnapshots(ctx context.Context, before time.Time) (int64, error)
}
