package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrBlobNotFound is returned when the store holds no object for a handle.
// Surfaced distinctly from transport errors so operators can tell storage
// integrity issues from authorization issues.
var ErrBlobNotFound = errors.New("blob not found in storage")

// UploadTarget is a short-lived write handle. The client PUTs raw bytes to
// URL; StorageID is the opaque handle recorded in the metadata store.
type UploadTarget struct {
	StorageID string
	URL       string
	ExpiresAt time.Time
}

// BlobStore issues read and write handles against the external object store.
// File bytes never pass through the metadata service except via Open, which
// backs the inline preview proxy.
type BlobStore interface {
	// IssueUploadURL mints a fresh storage handle and a pre-authorized
	// upload URL for it.
	IssueUploadURL(ctx context.Context) (*UploadTarget, error)

	// IssueDownloadURL resolves a read URL for an existing handle. Returns
	// ErrBlobNotFound when the object store has no bytes for it.
	IssueDownloadURL(ctx context.Context, storageID string) (string, error)

	// Open streams the object's bytes. The caller must close the reader.
	Open(ctx context.Context, storageID string) (io.ReadCloser, int64, error)
}
