// Package memory holds process-local adapters. State is lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-retriever/internal/core/domain"
	"github.com/custodia-labs/sercha-retriever/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CollectionStore = (*CollectionStore)(nil)

// CollectionStore keeps collection records in a map. Records are copied on the
// way in and out so callers never share state with the store.
type CollectionStore struct {
	mu          sync.RWMutex
	collections map[string]*domain.Collection
}

// NewCollectionStore creates an empty store
func NewCollectionStore() *CollectionStore {
	return &CollectionStore{collections: make(map[string]*domain.Collection)}
}

func (s *CollectionStore) GetOrCreate(ctx context.Context, c *domain.Collection) (*domain.Collection, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.collections[c.Name]; ok {
		return existing.Clone(), false, nil
	}
	s.collections[c.Name] = c.Clone()
	return c.Clone(), true, nil
}

func (s *CollectionStore) Get(ctx context.Context, name string) (*domain.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c.Clone(), nil
}

// Save replaces an existing record; unknown names are domain.ErrNotFound
func (s *CollectionStore) Save(ctx context.Context, c *domain.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[c.Name]; !ok {
		return domain.ErrNotFound
	}
	s.collections[c.Name] = c.Clone()
	return nil
}

func (s *CollectionStore) List(ctx context.Context) ([]*domain.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Collection, 0, len(s.collections))
	for _, c := range s.collections {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
