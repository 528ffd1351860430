package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-retriever/internal/core/domain"
)

// MockCollectionStore is a mock implementation of CollectionStore for testing.
// SaveFn and GetFn override the in-memory behaviour when set.
type MockCollectionStore struct {
	mu          sync.RWMutex
	collections map[string]*domain.Collection

	SaveFn func(c *domain.Collection) error
	GetFn  func(name string) (*domain.Collection, error)
}

// NewMockCollectionStore creates a new MockCollectionStore
func NewMockCollectionStore() *MockCollectionStore {
	return &MockCollectionStore{
		collections: make(map[string]*domain.Collection),
	}
}

func (m *MockCollectionStore) GetOrCreate(ctx context.Context, c *domain.Collection) (*domain.Collection, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.collections[c.Name]; ok {
		return existing.Clone(), false, nil
	}
	m.collections[c.Name] = c.Clone()
	return c.Clone(), true, nil
}

func (m *MockCollectionStore) Get(ctx context.Context, name string) (*domain.Collection, error) {
	if m.GetFn != nil {
		return m.GetFn(name)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c.Clone(), nil
}

func (m *MockCollectionStore) Save(ctx context.Context, c *domain.Collection) error {
	if m.SaveFn != nil {
		return m.SaveFn(c)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[c.Name]; !ok {
		return domain.ErrNotFound
	}
	m.collections[c.Name] = c.Clone()
	return nil
}

func (m *MockCollectionStore) List(ctx context.Context) ([]*domain.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Collection, 0, len(m.collections))
	for _, c := range m.collections {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Put stores a record directly (for test setup)
func (m *MockCollectionStore) Put(c *domain.Collection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[c.Name] = c.Clone()
}
