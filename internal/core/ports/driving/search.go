package driving

import (
	"context"

	"github.com/custodia-labs/sercha-retriever/internal/core/domain"
)

// SearchService routes queries to collection searchers
type SearchService interface {
	// Search returns the top-k hits for query in the named collection
	Search(ctx context.Context, name, query string, k int) (*domain.SearchResult, error)
}
