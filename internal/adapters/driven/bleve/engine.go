// Package bleve runs retrieval in-process on persisted Bleve indexes.
// It needs no accelerator and is the default engine for development and CPU hosts.
package bleve

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	indexapi "github.com/blevesearch/bleve_index_api"
	"github.com/custodia-labs/sercha-retriever/internal/adapters/driven/tsv"
	"github.com/custodia-labs/sercha-retriever/internal/core/domain"
	"github.com/custodia-labs/sercha-retriever/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.RetrievalEngine = (*Engine)(nil)

const textField = "text"

// Config holds engine tuning
type Config struct {
	// BatchSize is the number of passages written per Bleve batch
	BatchSize int

	// Analyzer names a registered Bleve analyzer for passage text
	Analyzer string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		BatchSize: 1000,
		Analyzer:  standard.Name,
	}
}

// Engine implements driven.RetrievalEngine on Bleve
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// NewEngine creates a Bleve engine
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.Analyzer == "" {
		cfg.Analyzer = standard.Name
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, logger: logger}
}

func (e *Engine) Name() string {
	return "bleve"
}

// passage is the stored Bleve document
type passage struct {
	Text  string `json:"text"`
	Title string `json:"title,omitempty"`
}

func (e *Engine) indexMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = e.cfg.Analyzer
	text.Store = true

	title := bleve.NewTextFieldMapping()
	title.Analyzer = e.cfg.Analyzer
	title.Store = false

	doc := bleve.NewDocumentStaticMapping()
	doc.AddFieldMappingsAt(textField, text)
	doc.AddFieldMappingsAt("title", title)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = e.cfg.Analyzer
	m.ScoringModel = indexapi.BM25Scoring
	return m
}

// BuildIndex writes the index into a scratch directory next to indexPath and
// renames it into place only once every batch has been committed.
func (e *Engine) BuildIndex(ctx context.Context, name, sourcePath, indexPath string) (*domain.IndexSummary, error) {
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	scratch := indexPath + ".building-" + randomSuffix()
	idx, err := bleve.New(scratch, e.indexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = idx.Close()
			_ = os.RemoveAll(scratch)
		}
	}()

	count := 0
	batch := idx.NewBatch()
	flush := func() error {
		if batch.Size() == 0 {
			return nil
		}
		if err := idx.Batch(batch); err != nil {
			return fmt.Errorf("write batch: %w", err)
		}
		batch.Reset()
		return nil
	}

	err = tsv.ScanFile(sourcePath, func(d tsv.Document) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := batch.Index(d.ID, passage{Text: d.Text, Title: d.Title}); err != nil {
			return fmt.Errorf("index passage %s: %w", d.ID, err)
		}
		count++
		if batch.Size() >= e.cfg.BatchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errors.New("source has no passages")
	}

	if err := idx.Close(); err != nil {
		return nil, fmt.Errorf("close index: %w", err)
	}
	committed = true

	// A leftover directory has no collection record pointing at it
	if err := os.RemoveAll(indexPath); err != nil {
		_ = os.RemoveAll(scratch)
		return nil, fmt.Errorf("clear stale index: %w", err)
	}
	if err := os.Rename(scratch, indexPath); err != nil {
		_ = os.RemoveAll(scratch)
		return nil, fmt.Errorf("publish index: %w", err)
	}

	e.logger.Info("bleve index built", "collection", name, "passages", count, "index_path", indexPath)
	return &domain.IndexSummary{DocumentCount: count}, nil
}

// OpenSearcher opens a persisted index. Passage text is read from the index itself.
func (e *Engine) OpenSearcher(ctx context.Context, indexPath, sourcePath string) (domain.Searcher, error) {
	idx, err := bleve.Open(indexPath)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", indexPath, err)
	}
	return &Searcher{index: idx}, nil
}

// HealthCheck always succeeds; the engine runs in-process
func (e *Engine) HealthCheck(ctx context.Context) error {
	return nil
}

func randomSuffix() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Searcher answers queries against one open Bleve index.
// Bleve indexes are safe for concurrent searches.
type Searcher struct {
	mu     sync.RWMutex
	index  bleve.Index
	closed bool
}

// fillBoost scores passages sharing no term with the query far below any real match
const fillBoost = 1e-6

// Search scores passages with BM25 and breaks ties by pid.
// Passages without a matching term fill the tail so k <= D always yields k hits.
func (s *Searcher) Search(ctx context.Context, query string, k int) ([]domain.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.New("searcher is closed")
	}

	match := bleve.NewMatchQuery(query)
	match.SetField(textField)

	fill := bleve.NewMatchAllQuery()
	fill.SetBoost(fillBoost)

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(match, fill))
	req.Size = k
	req.Fields = []string{textField}
	req.SortBy([]string{"-_score", "_id"})

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}

	hits := make([]domain.Hit, 0, len(res.Hits))
	for i, h := range res.Hits {
		text, _ := h.Fields[textField].(string)
		hits = append(hits, domain.Hit{
			DocumentID: h.ID,
			Rank:       i + 1,
			Score:      h.Score,
			Text:       text,
		})
	}
	return hits, nil
}

// Close releases the index files
func (s *Searcher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.index.Close()
}
