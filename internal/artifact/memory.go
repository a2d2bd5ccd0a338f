package artifact

import (
	"context"
	"sync"
)

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory implementation of Store.
// Entries are lost on restart; the files themselves stay on disk.
type MemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]Artifact
}

// NewMemoryStore creates a new in-memory artifact store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		artifacts: make(map[string]Artifact),
	}
}

// Put registers an artifact.
func (s *MemoryStore) Put(_ context.Context, a Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.artifacts[a.ID]; ok {
		return ErrAlreadyExists
	}
	s.artifacts[a.ID] = a
	return nil
}

// Get retrieves an artifact by its ID.
func (s *MemoryStore) Get(_ context.Context, id string) (Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[id]
	if !ok {
		return Artifact{}, ErrNotFound
	}
	return a, nil
}
