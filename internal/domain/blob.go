package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads data to object storage. Put never replaces an
// existing object and returns ErrAlreadyExists instead.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver copies ledger history in [since, before) to cold storage.
// Nothing is deleted from the primary store.
type Archiver interface {
	ArchiveTrades(ctx context.Context, since, before time.Time) (int64, error)
	ArchiveSnapshots(ctx context.Context, since, before time.Time) (int64, error)
	ArchiveAudit(ctx context.Context, since, before time.Time) (int64, error)
}
