package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-retriever/internal/core/domain"
	"github.com/custodia-labs/sercha-retriever/internal/core/ports/driven"
)

// Coordinator owns collection lifecycle transitions.
// It is the only writer of Collection.Status; everything else reads it.
type Coordinator struct {
	store  driven.CollectionStore
	logger *slog.Logger

	// mu serializes read-modify-write cycles on records
	mu sync.Mutex
}

// NewCoordinator creates a new Coordinator
func NewCoordinator(store driven.CollectionStore, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:  store,
		logger: logger,
	}
}

// MarkIndexed records a completed build: unindexed -> indexed
func (c *Coordinator) MarkIndexed(ctx context.Context, name, indexPath string, documentCount int) (*domain.Collection, error) {
	return c.transition(ctx, name, domain.StatusIndexed, func(coll *domain.Collection) {
		now := time.Now()
		coll.IndexPath = indexPath
		coll.DocumentCount = documentCount
		coll.IndexedAt = &now
	})
}

// MarkSearchable records a loaded searcher: indexed -> searchable
func (c *Coordinator) MarkSearchable(ctx context.Context, name string) (*domain.Collection, error) {
	return c.transition(ctx, name, domain.StatusSearchable, func(coll *domain.Collection) {
		now := time.Now()
		coll.ActivatedAt = &now
	})
}

// RecordFailure stores a build or activation failure without changing status
func (c *Coordinator) RecordFailure(ctx context.Context, name string, cause error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	coll, err := c.store.Get(ctx, name)
	if err != nil {
		return err
	}
	coll.LastError = cause.Error()
	if err := c.store.Save(ctx, coll); err != nil {
		return fmt.Errorf("record failure for %s: %w", name, err)
	}
	return nil
}

func (c *Coordinator) transition(ctx context.Context, name string, next domain.CollectionStatus, apply func(*domain.Collection)) (*domain.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	coll, err := c.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	if !coll.Status.CanTransitionTo(next) {
		return nil, c.rejectTransition(coll, next)
	}

	prev := coll.Status
	coll.Status = next
	coll.LastError = ""
	apply(coll)

	if err := coll.Validate(); err != nil {
		return nil, err
	}
	if err := c.store.Save(ctx, coll); err != nil {
		return nil, fmt.Errorf("save collection %s: %w", name, err)
	}

	c.logger.Info("collection transitioned", "collection", name, "from", prev, "to", next)
	return coll, nil
}

func (c *Coordinator) rejectTransition(coll *domain.Collection, next domain.CollectionStatus) error {
	switch {
	case next == domain.StatusIndexed && coll.Status.HasIndex():
		return fmt.Errorf("%w: collection %q is %s", domain.ErrAlreadyIndexed, coll.Name, coll.Status)
	case next == domain.StatusSearchable && coll.Status == domain.StatusUnindexed:
		return domain.NotReadyError(coll.Name, coll.Status)
	default:
		return fmt.Errorf("%w: collection %q cannot move from %s to %s", domain.ErrNotReady, coll.Name, coll.Status, next)
	}
}
