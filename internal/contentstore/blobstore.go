// Package contentstore implements the content store client/server:
// a put/get/delete blob interface keyed by ids.ResourceId, plus a
// per-problem name side table binding ids.DepId to the human-readable
// name it was authored under. Blobs are opaque UTF-8 text; the package
// provides an in-memory implementation for tests and presets, an
// S3-backed implementation for production blob storage, and a
// Redis-backed read-through cache that can wrap either.
package contentstore

import (
	"context"
	"sync"

	"github.com/arclight-oj/judge/internal/ids"
)

// BlobStore is the put/get/delete contract for text
// blobs. Implementations MUST treat Register as idempotent: registering
// the same ResourceId twice with the same content is not an error.
type BlobStore interface {
	Register(ctx context.Context, id ids.ResourceId, content string) error
	Fetch(ctx context.Context, id ids.ResourceId) (string, error)
	Remove(ctx context.Context, id ids.ResourceId) error
}

// InMemoryBlobStore is a mutex-guarded map implementation, the default
// for tests and for preset builders operating without a
// configured backend.
type InMemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[ids.ResourceId]string
}

// NewInMemoryBlobStore returns an empty InMemoryBlobStore.
func NewInMemoryBlobStore() *InMemoryBlobStore {
	return &InMemoryBlobStore{blobs: make(map[ids.ResourceId]string)}
}

func (s *InMemoryBlobStore) Register(_ context.Context, id ids.ResourceId, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[id] = content
	return nil
}

func (s *InMemoryBlobStore) Fetch(_ context.Context, id ids.ResourceId) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.blobs[id]
	if !ok {
		return "", &NotFound{ResourceID: id.String()}
	}
	return content, nil
}

func (s *InMemoryBlobStore) Remove(_ context.Context, id ids.ResourceId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[id]; !ok {
		return &NotFound{ResourceID: id.String()}
	}
	delete(s.blobs, id)
	return nil
}
