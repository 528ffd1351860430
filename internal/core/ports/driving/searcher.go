package driving

import (
	"context"

	"github.com/custodia-labs/sercha-retriever/internal/core/domain"
)

// SearcherRegistry activates and hands out searchers
type SearcherRegistry interface {
	// ActivateAll loads a searcher for every indexed collection
	ActivateAll(ctx context.Context) (*domain.ActivationReport, error)

	// GetSearcher returns the live handle for a searchable collection
	GetSearcher(ctx context.Context, name string) (*domain.SearcherHandle, error)

	// Close releases every searcher
	Close() error
}
