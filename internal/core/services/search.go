package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-retriever/internal/core/domain"
	"github.com/custodia-labs/sercha-retriever/internal/core/ports/driving"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Ensure searchService implements SearchService
var _ driving.SearchService = (*searchService)(nil)

// DefaultSearchCacheSize is the number of (collection, query, k) results kept
const DefaultSearchCacheSize = 10000

// searchService implements the SearchService interface
type searchService struct {
	registry driving.SearcherRegistry
	maxK     int
	cache    *lru.Cache[string, []domain.RankedHit] // nil when disabled
	logger   *slog.Logger
}

// SearchServiceConfig holds configuration for the query router.
type SearchServiceConfig struct {
	Registry  driving.SearcherRegistry
	MaxK      int // upper bound on k (default: 100)
	CacheSize int // LRU entries; negative disables the cache (default: 10000)
	Logger    *slog.Logger
}

// NewSearchService creates a new SearchService
func NewSearchService(cfg SearchServiceConfig) driving.SearchService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxK := cfg.MaxK
	if maxK <= 0 {
		maxK = domain.DefaultMaxK
	}

	size := cfg.CacheSize
	if size == 0 {
		size = DefaultSearchCacheSize
	}
	var cache *lru.Cache[string, []domain.RankedHit]
	if size > 0 {
		cache, _ = lru.New[string, []domain.RankedHit](size)
	}

	return &searchService{
		registry: cfg.Registry,
		maxK:     maxK,
		cache:    cache,
		logger:   logger,
	}
}

// Search validates arguments, then delegates ranking to the collection's searcher.
// Hits are returned in engine order.
func (s *searchService) Search(ctx context.Context, name, query string, k int) (*domain.SearchResult, error) {
	start := time.Now()

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query must not be empty", domain.ErrInvalidArgument)
	}
	if k < 1 || k > s.maxK {
		return nil, fmt.Errorf("%w: k must be between 1 and %d, got %d", domain.ErrInvalidArgument, s.maxK, k)
	}

	handle, err := s.registry.GetSearcher(ctx, name)
	if err != nil {
		return nil, err
	}

	result := &domain.SearchResult{
		Collection: name,
		Query:      query,
		K:          k,
	}

	key := cacheKey(name, query, k)
	if s.cache != nil {
		if hits, ok := s.cache.Get(key); ok {
			result.TopK = hits
			result.Cached = true
			result.Took = time.Since(start)
			return result, nil
		}
	}

	var hits []domain.Hit
	err = guardEngine("search", func() error {
		var err error
		hits, err = handle.Searcher.Search(ctx, query, k)
		return err
	})
	if err != nil {
		s.logger.Error("search failed", "collection", name, "error", err)
		return nil, fmt.Errorf("%w: collection %q: %w", domain.ErrSearchFailed, name, err)
	}

	result.TopK = domain.RankHits(hits)
	if s.cache != nil {
		s.cache.Add(key, result.TopK)
	}
	result.Took = time.Since(start)
	return result, nil
}

func cacheKey(name, query string, k int) string {
	return name + "\x00" + query + "\x00" + strconv.Itoa(k)
}
