package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"knowledge-nest-backend/pkg/utils"
)

// MemoryBlobStore is an in-memory BlobStore for development and tests. URLs
// use the mem:// scheme and are not fetchable; tests exercise Open instead.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryBlobStore creates an empty in-memory blob store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

// Put stores bytes under a handle. Test helper standing in for the client's
// direct PUT against a presigned URL.
func (s *MemoryBlobStore) Put(storageID string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[storageID] = append([]byte(nil), data...)
}

func (s *MemoryBlobStore) IssueUploadURL(ctx context.Context) (*UploadTarget, error) {
	storageID, err := utils.GenerateURLToken(24)
	if err != nil {
		return nil, fmt.Errorf("failed to generate storage id: %w", err)
	}
	return &UploadTarget{
		StorageID: storageID,
		URL:       "mem://upload/" + storageID,
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}, nil
}

func (s *MemoryBlobStore) IssueDownloadURL(ctx context.Context, storageID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.blobs[storageID]; !ok {
		return "", fmt.Errorf("object %s: %w", storageID, ErrBlobNotFound)
	}
	return "mem://download/" + storageID, nil
}

func (s *MemoryBlobStore) Open(ctx context.Context, storageID string) (io.ReadCloser, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[storageID]
	if !ok {
		return nil, 0, fmt.Errorf("object %s: %w", storageID, ErrBlobNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}
