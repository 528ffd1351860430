package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-retriever/internal/core/domain"
	"github.com/custodia-labs/sercha-retriever/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-retriever/internal/core/ports/driving"
	"golang.org/x/sync/singleflight"
)

// Ensure SearcherRegistry implements driving.SearcherRegistry
var _ driving.SearcherRegistry = (*SearcherRegistry)(nil)

// SearcherRegistry holds at most one live searcher per searchable collection.
// Handles are built once and reused by every query until Close.
type SearcherRegistry struct {
	store       driven.CollectionStore
	collections driving.CollectionService
	coordinator *Coordinator
	engine      driven.RetrievalEngine
	guard       *AcceleratorGuard
	discover    bool
	logger      *slog.Logger

	mu      sync.RWMutex
	handles map[string]*domain.SearcherHandle
	loads   singleflight.Group
}

// SearcherRegistryConfig holds the dependencies of the registry.
type SearcherRegistryConfig struct {
	Store       driven.CollectionStore
	Collections driving.CollectionService
	Coordinator *Coordinator
	Engine      driven.RetrievalEngine
	Guard       *AcceleratorGuard
	Discover    bool // register source files found in the documents directory before activating
	Logger      *slog.Logger
}

// NewSearcherRegistry creates a new SearcherRegistry
func NewSearcherRegistry(cfg SearcherRegistryConfig) *SearcherRegistry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SearcherRegistry{
		store:       cfg.Store,
		collections: cfg.Collections,
		coordinator: cfg.Coordinator,
		engine:      cfg.Engine,
		guard:       cfg.Guard,
		discover:    cfg.Discover,
		logger:      logger,
		handles:     make(map[string]*domain.SearcherHandle),
	}
}

// ActivateAll loads a searcher for every indexed collection.
// A collection that fails stays indexed with the failure recorded; the pass continues.
func (r *SearcherRegistry) ActivateAll(ctx context.Context) (*domain.ActivationReport, error) {
	report := domain.NewActivationReport()

	err := r.guard.Do(ctx, "init_searchers", func(ctx context.Context) error {
		if r.discover && r.collections != nil {
			if _, err := r.collections.Discover(ctx); err != nil {
				r.logger.Warn("source discovery failed", "error", err)
			}
		}

		colls, err := r.store.List(ctx)
		if err != nil {
			return fmt.Errorf("list collections: %w", err)
		}

		for _, coll := range colls {
			r.activateOne(ctx, coll, report)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("searcher activation finished",
		"activated", len(report.Activated),
		"already_active", len(report.AlreadyActive),
		"not_ready", len(report.NotReady),
		"failed", len(report.Failed))
	return report, nil
}

func (r *SearcherRegistry) activateOne(ctx context.Context, coll *domain.Collection, report *domain.ActivationReport) {
	switch coll.Status {
	case domain.StatusUnindexed:
		report.NotReady = append(report.NotReady, coll.Name)
		return

	case domain.StatusSearchable:
		if r.lookup(coll.Name) != nil {
			report.AlreadyActive = append(report.AlreadyActive, coll.Name)
			return
		}
		// Status survived a restart through a persistent store but the handle did not
		h, err := r.load(ctx, coll)
		if err != nil {
			r.fail(ctx, coll.Name, err, report)
			return
		}
		r.publish(h)
		report.Activated = append(report.Activated, coll.Name)
		return

	case domain.StatusIndexed:
		h, err := r.load(ctx, coll)
		if err != nil {
			r.fail(ctx, coll.Name, err, report)
			return
		}
		// Queries see the handle only once the record says searchable
		if _, err := r.coordinator.MarkSearchable(ctx, coll.Name); err != nil {
			r.closeHandle(h)
			r.fail(ctx, coll.Name, err, report)
			return
		}
		r.publish(h)
		report.Activated = append(report.Activated, coll.Name)
	}
}

// load constructs the handle once per key; concurrent callers share the result.
// The handle is not visible to GetSearcher until the caller publishes it.
func (r *SearcherRegistry) load(ctx context.Context, coll *domain.Collection) (*domain.SearcherHandle, error) {
	v, err, _ := r.loads.Do(coll.Name, func() (interface{}, error) {
		if h := r.lookup(coll.Name); h != nil {
			return h, nil
		}

		start := time.Now()
		var searcher domain.Searcher
		err := guardEngine("activation", func() error {
			var err error
			searcher, err = r.engine.OpenSearcher(ctx, coll.IndexPath, coll.SourcePath)
			return err
		})
		if err == nil && searcher == nil {
			err = errors.New("engine returned no searcher")
		}
		if err != nil {
			return nil, fmt.Errorf("%w: collection %q: %w", domain.ErrActivationFailed, coll.Name, err)
		}

		h := &domain.SearcherHandle{
			CollectionName: coll.Name,
			Searcher:       searcher,
			ActivatedAt:    time.Now(),
		}
		r.logger.Info("searcher loaded", "collection", coll.Name, "index_path", coll.IndexPath, "took", time.Since(start))
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.SearcherHandle), nil
}

func (r *SearcherRegistry) fail(ctx context.Context, name string, err error, report *domain.ActivationReport) {
	r.logger.Error("searcher activation failed", "collection", name, "error", err)
	report.Failed[name] = err.Error()
	if recErr := r.coordinator.RecordFailure(ctx, name, err); recErr != nil {
		r.logger.Error("failed to record activation failure", "collection", name, "error", recErr)
	}
}

func (r *SearcherRegistry) lookup(name string) *domain.SearcherHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handles[name]
}

func (r *SearcherRegistry) publish(h *domain.SearcherHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[h.CollectionName] = h
}

// closeHandle releases a handle that was never published
func (r *SearcherRegistry) closeHandle(h *domain.SearcherHandle) {
	if err := h.Searcher.Close(); err != nil {
		r.logger.Error("failed to close searcher", "collection", h.CollectionName, "error", err)
	}
}

// GetSearcher returns the handle for a searchable collection.
// Unknown names are domain.ErrNotFound; known but not searchable are domain.ErrNotReady.
func (r *SearcherRegistry) GetSearcher(ctx context.Context, name string) (*domain.SearcherHandle, error) {
	if h := r.lookup(name); h != nil {
		return h, nil
	}

	coll, err := r.store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: collection %q was never registered; add %s%s and call POST /api/index/%s",
				domain.ErrNotFound, name, name, SourceExt, name)
		}
		return nil, err
	}

	if coll.Status == domain.StatusSearchable {
		// Searchable in the store but no handle in this process
		return nil, domain.NotReadyError(name, domain.StatusIndexed)
	}
	return nil, domain.NotReadyError(name, coll.Status)
}

// Active returns the names of collections with a live searcher
func (r *SearcherRegistry) Active() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handles))
	for name := range r.handles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases every searcher. Called on process teardown.
func (r *SearcherRegistry) Close() error {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[string]*domain.SearcherHandle)
	r.mu.Unlock()

	var errs []error
	for name, h := range handles {
		if err := h.Searcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close searcher %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
