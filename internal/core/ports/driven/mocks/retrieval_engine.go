package mocks

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/sercha-retriever/internal/core/domain"
)

// MockRetrievalEngine is an in-memory RetrievalEngine for testing.
// Sources are registered by path; each document's id is its row number.
// It records how many heavy operations ran at once so tests can assert exclusivity.
type MockRetrievalEngine struct {
	mu      sync.Mutex
	sources map[string][]string
	indexes map[string][]string

	// BuildDelay and OpenDelay hold the heavy operation open for concurrency tests
	BuildDelay time.Duration
	OpenDelay  time.Duration

	// BuildErrors and OpenErrors inject failures by collection name and index path
	BuildErrors map[string]error
	OpenErrors  map[string]error

	HealthErr error

	active      int32
	maxActive   int32
	buildCalls  int32
	openCalls   int32
	searchCalls int32
}

// NewMockRetrievalEngine creates a new MockRetrievalEngine
func NewMockRetrievalEngine() *MockRetrievalEngine {
	return &MockRetrievalEngine{
		sources:     make(map[string][]string),
		indexes:     make(map[string][]string),
		BuildErrors: make(map[string]error),
		OpenErrors:  make(map[string]error),
	}
}

// AddSource registers the documents readable at sourcePath
func (m *MockRetrievalEngine) AddSource(sourcePath string, docs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[sourcePath] = docs
}

// CorruptIndex drops a built index so opening it fails
func (m *MockRetrievalEngine) CorruptIndex(indexPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.indexes, indexPath)
}

func (m *MockRetrievalEngine) Name() string {
	return "mock"
}

func (m *MockRetrievalEngine) BuildIndex(ctx context.Context, name, sourcePath, indexPath string) (*domain.IndexSummary, error) {
	atomic.AddInt32(&m.buildCalls, 1)
	defer m.enter()()

	if m.BuildDelay > 0 {
		time.Sleep(m.BuildDelay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.BuildErrors[name]; err != nil {
		return nil, err
	}
	docs, ok := m.sources[sourcePath]
	if !ok {
		return nil, fmt.Errorf("open %s: no such file or directory", sourcePath)
	}
	m.indexes[indexPath] = docs
	return &domain.IndexSummary{DocumentCount: len(docs)}, nil
}

func (m *MockRetrievalEngine) OpenSearcher(ctx context.Context, indexPath, sourcePath string) (domain.Searcher, error) {
	atomic.AddInt32(&m.openCalls, 1)
	defer m.enter()()

	if m.OpenDelay > 0 {
		time.Sleep(m.OpenDelay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.OpenErrors[indexPath]; err != nil {
		return nil, err
	}
	docs, ok := m.indexes[indexPath]
	if !ok {
		return nil, fmt.Errorf("load index %s: metadata missing", indexPath)
	}
	return &MockSearcher{docs: docs, calls: &m.searchCalls}, nil
}

func (m *MockRetrievalEngine) HealthCheck(ctx context.Context) error {
	return m.HealthErr
}

// enter marks a heavy operation as running and returns its exit func
func (m *MockRetrievalEngine) enter() func() {
	n := atomic.AddInt32(&m.active, 1)
	for {
		seen := atomic.LoadInt32(&m.maxActive)
		if n <= seen || atomic.CompareAndSwapInt32(&m.maxActive, seen, n) {
			break
		}
	}
	return func() { atomic.AddInt32(&m.active, -1) }
}

// MaxConcurrentHeavyOps is the highest number of builds and loads seen running together
func (m *MockRetrievalEngine) MaxConcurrentHeavyOps() int {
	return int(atomic.LoadInt32(&m.maxActive))
}

func (m *MockRetrievalEngine) BuildCalls() int {
	return int(atomic.LoadInt32(&m.buildCalls))
}

func (m *MockRetrievalEngine) OpenCalls() int {
	return int(atomic.LoadInt32(&m.openCalls))
}

func (m *MockRetrievalEngine) SearchCalls() int {
	return int(atomic.LoadInt32(&m.searchCalls))
}

// MockSearcher scores documents by query term overlap
type MockSearcher struct {
	docs   []string
	calls  *int32
	closed atomic.Bool
}

func (s *MockSearcher) Search(ctx context.Context, query string, k int) ([]domain.Hit, error) {
	atomic.AddInt32(s.calls, 1)
	if s.closed.Load() {
		return nil, fmt.Errorf("searcher closed")
	}

	terms := strings.Fields(strings.ToLower(query))
	hits := make([]domain.Hit, len(s.docs))
	for i, doc := range s.docs {
		lower := strings.ToLower(doc)
		var score float64
		for _, term := range terms {
			if strings.Contains(lower, term) {
				score++
			}
		}
		hits[i] = domain.Hit{DocumentID: strconv.Itoa(i), Score: score, Text: doc}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k < len(hits) {
		hits = hits[:k]
	}
	for i := range hits {
		hits[i].Rank = i + 1
	}
	return hits, nil
}

func (s *MockSearcher) Close() error {
	s.closed.Store(true)
	return nil
}

// Closed reports whether Close was called
func (s *MockSearcher) Closed() bool {
	return s.closed.Load()
}
