// Package blob provides page snapshot stores: in-memory for
// development, local filesystem, and Google Cloud Storage.
package blob

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps snapshots in-memory and returns pseudo URIs.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Put implements scraper.BlobStore.
func (s *MemoryStore) Put(_ context.Context, path, _ string, data []byte) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = append([]byte(nil), data...)
	return fmt.Sprintf("memory://%s", path), nil
}

// Get returns a stored snapshot (test helper).
func (s *MemoryStore) Get(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[path]
	return data, ok
}
