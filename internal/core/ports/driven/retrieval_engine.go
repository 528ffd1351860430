package driven

import (
	"context"

	"github.com/custodia-labs/sercha-retriever/internal/core/domain"
)

// RetrievalEngine is the external engine that encodes documents and answers queries.
// Builds and searcher loads are heavy accelerator operations; callers serialize them.
type RetrievalEngine interface {
	// Name identifies the engine in logs and health output
	Name() string

	// BuildIndex reads the TSV source and persists an index at indexPath
	BuildIndex(ctx context.Context, name, sourcePath, indexPath string) (*domain.IndexSummary, error)

	// OpenSearcher loads a persisted index into a query-ready searcher
	OpenSearcher(ctx context.Context, indexPath, sourcePath string) (domain.Searcher, error)

	// HealthCheck verifies the engine is available
	HealthCheck(ctx context.Context) error
}
