package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/custodia-labs/sercha-retriever/internal/core/domain"
	"github.com/custodia-labs/sercha-retriever/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-retriever/internal/core/ports/driving"
)

// Ensure collectionService implements CollectionService
var _ driving.CollectionService = (*collectionService)(nil)

type collectionService struct {
	store  driven.CollectionStore
	layout Layout
	logger *slog.Logger
}

// NewCollectionService creates a new CollectionService
func NewCollectionService(store driven.CollectionStore, layout Layout, logger *slog.Logger) driving.CollectionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &collectionService{
		store:  store,
		layout: layout,
		logger: logger,
	}
}

// Register returns the existing record unchanged, or creates an unindexed one
func (s *collectionService) Register(ctx context.Context, name string) (*domain.Collection, error) {
	if err := domain.ValidateCollectionName(name); err != nil {
		return nil, err
	}

	existing, err := s.store.Get(ctx, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	sourcePath := s.layout.SourcePath(name)
	if err := s.checkSource(name, sourcePath); err != nil {
		return nil, err
	}

	coll, created, err := s.store.GetOrCreate(ctx, domain.NewCollection(name, sourcePath))
	if err != nil {
		return nil, fmt.Errorf("register collection %s: %w", name, err)
	}
	if created {
		s.logger.Info("collection registered", "collection", name, "source", sourcePath)
	}
	return coll, nil
}

// Get reports a never-registered name with a source file as a transient unindexed record
func (s *collectionService) Get(ctx context.Context, name string) (*domain.Collection, error) {
	coll, err := s.store.Get(ctx, name)
	if err == nil {
		return coll, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if domain.ValidateCollectionName(name) != nil {
		return nil, fmt.Errorf("%w: collection %q", domain.ErrNotFound, name)
	}
	sourcePath := s.layout.SourcePath(name)
	if err := s.checkSource(name, sourcePath); err != nil {
		return nil, err
	}
	return domain.NewCollection(name, sourcePath), nil
}

func (s *collectionService) List(ctx context.Context) ([]*domain.Collection, error) {
	return s.store.List(ctx)
}

// Discover registers every {name}.tsv file in the documents directory
func (s *collectionService) Discover(ctx context.Context) ([]*domain.Collection, error) {
	entries, err := os.ReadDir(s.layout.DocumentsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("documents directory does not exist", "dir", s.layout.DocumentsDir)
			return []*domain.Collection{}, nil
		}
		return nil, fmt.Errorf("read documents directory: %w", err)
	}

	var found []*domain.Collection
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), SourceExt) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), SourceExt)
		if domain.ValidateCollectionName(name) != nil {
			s.logger.Warn("skipping source with invalid collection name", "file", entry.Name())
			continue
		}
		coll, err := s.Register(ctx, name)
		if err != nil {
			return found, err
		}
		found = append(found, coll)
	}
	return found, nil
}

func (s *collectionService) checkSource(name, sourcePath string) error {
	info, err := os.Stat(sourcePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: collection %q has no source file %s", domain.ErrNotFound, name, sourcePath)
		}
		return fmt.Errorf("stat source %s: %w", sourcePath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: source %s is a directory", domain.ErrNotFound, sourcePath)
	}
	return nil
}
