package services

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/custodia-labs/sercha-retriever/internal/core/ports/driven/mocks"
)

// testEnv wires the core services against mocks and a temp documents directory
type testEnv struct {
	t           *testing.T
	layout      Layout
	store       *mocks.MockCollectionStore
	engine      *mocks.MockRetrievalEngine
	guard       *AcceleratorGuard
	coordinator *Coordinator
	collections *collectionService
	indexer     *indexService
	registry    *SearcherRegistry
	search      *searchService
}

type envOption func(*AcceleratorGuardConfig)

func withPolicy(p LockPolicy, wait time.Duration) envOption {
	return func(c *AcceleratorGuardConfig) {
		c.Policy = p
		c.WaitTimeout = wait
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	dir := t.TempDir()
	layout := Layout{
		DocumentsDir:   filepath.Join(dir, "data"),
		ExperimentsDir: filepath.Join(dir, "experiments"),
		IndexName:      "index",
	}
	if err := os.MkdirAll(layout.DocumentsDir, 0o755); err != nil {
		t.Fatalf("failed to create documents dir: %v", err)
	}

	guardCfg := AcceleratorGuardConfig{Logger: discardLogger(), WaitTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&guardCfg)
	}

	logger := discardLogger()
	store := mocks.NewMockCollectionStore()
	engine := mocks.NewMockRetrievalEngine()
	guard := NewAcceleratorGuard(guardCfg)
	coordinator := NewCoordinator(store, logger)
	collections := NewCollectionService(store, layout, logger).(*collectionService)
	indexer := NewIndexService(IndexServiceConfig{
		Collections: collections,
		Coordinator: coordinator,
		Engine:      engine,
		Guard:       guard,
		Layout:      layout,
		Logger:      logger,
	}).(*indexService)
	registry := NewSearcherRegistry(SearcherRegistryConfig{
		Store:       store,
		Collections: collections,
		Coordinator: coordinator,
		Engine:      engine,
		Guard:       guard,
		Discover:    true,
		Logger:      logger,
	})
	search := NewSearchService(SearchServiceConfig{
		Registry: registry,
		MaxK:     100,
		Logger:   logger,
	}).(*searchService)

	return &testEnv{
		t:           t,
		layout:      layout,
		store:       store,
		engine:      engine,
		guard:       guard,
		coordinator: coordinator,
		collections: collections,
		indexer:     indexer,
		registry:    registry,
		search:      search,
	}
}

// addSource writes {name}.tsv and registers its documents with the mock engine
func (e *testEnv) addSource(name string, docs ...string) {
	e.t.Helper()

	var b strings.Builder
	for i, doc := range docs {
		b.WriteString(strings.Join([]string{strconv.Itoa(i), doc}, "\t"))
		b.WriteString("\n")
	}
	path := e.layout.SourcePath(name)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		e.t.Fatalf("failed to write source: %v", err)
	}
	e.engine.AddSource(path, docs...)
}
