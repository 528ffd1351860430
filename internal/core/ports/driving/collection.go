package driving

import (
	"context"

	"github.com/custodia-labs/sercha-retriever/internal/core/domain"
)

// CollectionService manages collection records
type CollectionService interface {
	// Register returns the record for name, creating an unindexed one on first use
	Register(ctx context.Context, name string) (*domain.Collection, error)

	// Get retrieves a collection; unregistered names with a source file are reported unindexed
	Get(ctx context.Context, name string) (*domain.Collection, error)

	// List retrieves all registered collections
	List(ctx context.Context) ([]*domain.Collection, error)

	// Discover registers every source file found in the documents directory
	Discover(ctx context.Context) ([]*domain.Collection, error)
}
