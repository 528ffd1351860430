// Package colbert drives a ColBERT sidecar that owns the accelerator.
// The sidecar encodes and loads indexes; this client only asks it to.
package colbert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-retriever/internal/adapters/driven/tsv"
	"github.com/custodia-labs/sercha-retriever/internal/core/domain"
	"github.com/custodia-labs/sercha-retriever/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.RetrievalEngine = (*Engine)(nil)

// Engine implements driven.RetrievalEngine against the sidecar HTTP API
type Engine struct {
	baseURL    string
	checkpoint string
	docMaxLen  int
	nbits      int
	httpClient *http.Client
}

// Config holds sidecar connection and indexing configuration
type Config struct {
	// BaseURL is the sidecar endpoint (e.g., http://localhost:8894)
	BaseURL string

	// Checkpoint is the model checkpoint directory on the sidecar host
	Checkpoint string

	// DocMaxLen truncates passages to this many tokens at indexing time
	DocMaxLen int

	// NBits is the residual compression width
	NBits int

	// Timeout bounds each HTTP request. Builds can take hours.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		Checkpoint: "/app/checkpoint",
		DocMaxLen:  300,
		NBits:      2,
		Timeout:    6 * time.Hour,
	}
}

// NewEngine creates a sidecar-backed engine
func NewEngine(cfg Config) *Engine {
	return &Engine{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		checkpoint: cfg.Checkpoint,
		docMaxLen:  cfg.DocMaxLen,
		nbits:      cfg.NBits,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (e *Engine) Name() string {
	return "colbert"
}

type indexRequest struct {
	Name       string `json:"name"`
	Collection string `json:"collection"`
	IndexPath  string `json:"index_path"`
	Checkpoint string `json:"checkpoint"`
	DocMaxLen  int    `json:"doc_maxlen"`
	NBits      int    `json:"nbits"`
}

type indexResponse struct {
	DocumentCount int `json:"document_count"`
}

type loadRequest struct {
	IndexPath  string `json:"index_path"`
	Checkpoint string `json:"checkpoint"`
}

type loadResponse struct {
	SearcherID string `json:"searcher_id"`
}

type searchResponse struct {
	PIDs   []int64   `json:"pids"`
	Ranks  []int     `json:"ranks"`
	Scores []float64 `json:"scores"`
}

// BuildIndex asks the sidecar to encode sourcePath into indexPath and waits for it
func (e *Engine) BuildIndex(ctx context.Context, name, sourcePath, indexPath string) (*domain.IndexSummary, error) {
	var resp indexResponse
	err := e.do(ctx, http.MethodPost, "/indexes", indexRequest{
		Name:       name,
		Collection: sourcePath,
		IndexPath:  indexPath,
		Checkpoint: e.checkpoint,
		DocMaxLen:  e.docMaxLen,
		NBits:      e.nbits,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &domain.IndexSummary{DocumentCount: resp.DocumentCount}, nil
}

// OpenSearcher loads the index on the sidecar and the passages locally.
// The sidecar only returns pids; text is resolved from the source file.
func (e *Engine) OpenSearcher(ctx context.Context, indexPath, sourcePath string) (domain.Searcher, error) {
	passages, err := tsv.ReadPassages(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("load passages: %w", err)
	}

	var resp loadResponse
	if err := e.do(ctx, http.MethodPost, "/searchers", loadRequest{
		IndexPath:  indexPath,
		Checkpoint: e.checkpoint,
	}, &resp); err != nil {
		return nil, err
	}
	if resp.SearcherID == "" {
		return nil, fmt.Errorf("colbert sidecar returned no searcher id for %s", indexPath)
	}

	return &Searcher{engine: e, id: resp.SearcherID, passages: passages}, nil
}

// HealthCheck verifies the sidecar is available
func (e *Engine) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("colbert health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("colbert unhealthy: %s", resp.Status)
	}
	return nil
}

// do sends body as JSON and decodes a JSON reply into out when non-nil
func (e *Engine) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("colbert %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("colbert %s %s failed: %s - %s", method, path, resp.Status, strings.TrimSpace(string(respBody)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Searcher is a sidecar-resident searcher plus the passage table for text lookup
type Searcher struct {
	engine   *Engine
	id       string
	passages map[string]string
}

// Search returns the sidecar's ranking unchanged
func (s *Searcher) Search(ctx context.Context, query string, k int) ([]domain.Hit, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("k", strconv.Itoa(k))

	var resp searchResponse
	path := "/searchers/" + url.PathEscape(s.id) + "/search?" + q.Encode()
	if err := s.engine.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Ranks) != len(resp.PIDs) || len(resp.Scores) != len(resp.PIDs) {
		return nil, fmt.Errorf("colbert returned %d pids, %d ranks, %d scores", len(resp.PIDs), len(resp.Ranks), len(resp.Scores))
	}

	hits := make([]domain.Hit, len(resp.PIDs))
	for i, pid := range resp.PIDs {
		id := strconv.FormatInt(pid, 10)
		hits[i] = domain.Hit{
			DocumentID: id,
			Rank:       resp.Ranks[i],
			Score:      resp.Scores[i],
			Text:       s.passages[id],
		}
	}
	return hits, nil
}

// Close unloads the searcher on the sidecar
func (s *Searcher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.engine.do(ctx, http.MethodDelete, "/searchers/"+url.PathEscape(s.id), nil, nil)
}
