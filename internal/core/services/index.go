package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/sercha-retriever/internal/core/domain"
	"github.com/custodia-labs/sercha-retriever/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-retriever/internal/core/ports/driving"
)

// Ensure indexService implements IndexService
var _ driving.IndexService = (*indexService)(nil)

type indexService struct {
	collections driving.CollectionService
	coordinator *Coordinator
	engine      driven.RetrievalEngine
	guard       *AcceleratorGuard
	layout      Layout
	logger      *slog.Logger
}

// IndexServiceConfig holds the dependencies of the index builder.
type IndexServiceConfig struct {
	Collections driving.CollectionService
	Coordinator *Coordinator
	Engine      driven.RetrievalEngine
	Guard       *AcceleratorGuard
	Layout      Layout
	Logger      *slog.Logger
}

// NewIndexService creates a new IndexService
func NewIndexService(cfg IndexServiceConfig) driving.IndexService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &indexService{
		collections: cfg.Collections,
		coordinator: cfg.Coordinator,
		engine:      cfg.Engine,
		guard:       cfg.Guard,
		layout:      cfg.Layout,
		logger:      logger,
	}
}

// Build drives the engine to persist an index for an unindexed collection.
// A failed build leaves the collection unindexed with the failure recorded.
func (s *indexService) Build(ctx context.Context, name string) (*domain.BuildSummary, error) {
	coll, err := s.collections.Register(ctx, name)
	if err != nil {
		return nil, err
	}
	if coll.Status.HasIndex() {
		return nil, alreadyIndexed(coll)
	}

	var summary *domain.BuildSummary
	err = s.guard.Do(ctx, "build:"+name, func(ctx context.Context) error {
		// Another build of the same name may have finished while we waited
		coll, err := s.collections.Register(ctx, name)
		if err != nil {
			return err
		}
		if coll.Status.HasIndex() {
			return alreadyIndexed(coll)
		}

		summary, err = s.build(ctx, coll)
		return err
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *indexService) build(ctx context.Context, coll *domain.Collection) (*domain.BuildSummary, error) {
	start := time.Now()
	indexPath := s.layout.IndexPath(coll.Name)
	s.logger.Info("index build started",
		"collection", coll.Name,
		"source", coll.SourcePath,
		"index_path", indexPath,
		"engine", s.engine.Name())

	var res *domain.IndexSummary
	err := guardEngine("build", func() error {
		var err error
		res, err = s.engine.BuildIndex(ctx, coll.Name, coll.SourcePath, indexPath)
		return err
	})
	if err == nil && res == nil {
		err = fmt.Errorf("engine returned no index summary")
	}
	if err != nil {
		s.logger.Error("index build failed", "collection", coll.Name, "error", err, "took", time.Since(start))
		if recErr := s.coordinator.RecordFailure(ctx, coll.Name, err); recErr != nil {
			s.logger.Error("failed to record build failure", "collection", coll.Name, "error", recErr)
		}
		return nil, fmt.Errorf("%w: collection %q: %w", domain.ErrBuildFailed, coll.Name, err)
	}

	updated, err := s.coordinator.MarkIndexed(ctx, coll.Name, indexPath, res.DocumentCount)
	if err != nil {
		return nil, err
	}

	took := time.Since(start)
	s.logger.Info("index build completed",
		"collection", coll.Name,
		"documents", res.DocumentCount,
		"took", took)

	return &domain.BuildSummary{
		Collection:    updated.Name,
		IndexPath:     updated.IndexPath,
		DocumentCount: updated.DocumentCount,
		Took:          took,
	}, nil
}

func alreadyIndexed(coll *domain.Collection) error {
	return fmt.Errorf("%w: collection %q is %s at %s", domain.ErrAlreadyIndexed, coll.Name, coll.Status, coll.IndexPath)
}
