package driven

import (
	"context"

	"github.com/custodia-labs/sercha-retriever/internal/core/domain"
)

// CollectionStore handles collection record persistence (memory or PostgreSQL)
type CollectionStore interface {
	// GetOrCreate stores c unless a record with the same name exists.
	// Returns the stored record and whether it was created by this call.
	GetOrCreate(ctx context.Context, c *domain.Collection) (*domain.Collection, bool, error)

	// Get retrieves a collection by name, domain.ErrNotFound if absent
	Get(ctx context.Context, name string) (*domain.Collection, error)

	// Save updates an existing collection
	Save(ctx context.Context, c *domain.Collection) error

	// List retrieves all collections ordered by name
	List(ctx context.Context) ([]*domain.Collection, error)
}
