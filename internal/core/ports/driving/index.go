package driving

import (
	"context"

	"github.com/custodia-labs/sercha-retriever/internal/core/domain"
)

// IndexService builds persisted indexes for collections
type IndexService interface {
	// Build indexes the collection's source; only valid while the collection is unindexed
	Build(ctx context.Context, name string) (*domain.BuildSummary, error)
}
