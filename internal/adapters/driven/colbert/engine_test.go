package colbert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, handler http.Handler) *Engine {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig(srv.URL + "/")
	cfg.Timeout = 5 * time.Second
	return NewEngine(cfg)
}

func TestEngine_BuildIndex(t *testing.T) {
	var got indexRequest
	e := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/indexes", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(indexResponse{DocumentCount: 12})
	}))

	summary, err := e.BuildIndex(context.Background(), "wiki", "/app/data/wiki.tsv", "/app/experiments/wiki/indexes/wiki")
	require.NoError(t, err)
	assert.Equal(t, 12, summary.DocumentCount)

	assert.Equal(t, "wiki", got.Name)
	assert.Equal(t, "/app/data/wiki.tsv", got.Collection)
	assert.Equal(t, "/app/checkpoint", got.Checkpoint)
	assert.Equal(t, 300, got.DocMaxLen)
	assert.Equal(t, 2, got.NBits)
}

func TestEngine_BuildIndexFailure(t *testing.T) {
	e := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "CUDA out of memory", http.StatusInternalServerError)
	}))

	_, err := e.BuildIndex(context.Background(), "wiki", "/src", "/idx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CUDA out of memory")
}

func TestEngine_SearcherLifecycle(t *testing.T) {
	source := filepath.Join(t.TempDir(), "wiki.tsv")
	require.NoError(t, os.WriteFile(source, []byte("10\tten\n20\ttwenty\n"), 0o644))

	deleted := false
	mux := http.NewServeMux()
	mux.HandleFunc("POST /searchers", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(loadResponse{SearcherID: "s1"})
	})
	mux.HandleFunc("GET /searchers/s1/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "twenty ten", r.URL.Query().Get("query"))
		assert.Equal(t, "2", r.URL.Query().Get("k"))
		_ = json.NewEncoder(w).Encode(searchResponse{
			PIDs:   []int64{20, 10},
			Ranks:  []int{1, 2},
			Scores: []float64{21.5, 19.25},
		})
	})
	mux.HandleFunc("DELETE /searchers/s1", func(w http.ResponseWriter, r *http.Request) {
		deleted = true
		w.WriteHeader(http.StatusNoContent)
	})
	e := newTestEngine(t, mux)
	ctx := context.Background()

	searcher, err := e.OpenSearcher(ctx, "/idx", source)
	require.NoError(t, err)

	hits, err := searcher.Search(ctx, "twenty ten", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "20", hits[0].DocumentID)
	assert.Equal(t, "twenty", hits[0].Text)
	assert.Equal(t, 1, hits[0].Rank)
	assert.Equal(t, 21.5, hits[0].Score)
	assert.Equal(t, "ten", hits[1].Text)

	require.NoError(t, searcher.Close())
	assert.True(t, deleted)
}

func TestEngine_SearchMismatchedArrays(t *testing.T) {
	source := filepath.Join(t.TempDir(), "wiki.tsv")
	require.NoError(t, os.WriteFile(source, []byte("1\tone\n"), 0o644))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /searchers", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(loadResponse{SearcherID: "s1"})
	})
	mux.HandleFunc("GET /searchers/s1/search", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(searchResponse{PIDs: []int64{1}, Ranks: []int{}, Scores: []float64{1}})
	})
	e := newTestEngine(t, mux)

	searcher, err := e.OpenSearcher(context.Background(), "/idx", source)
	require.NoError(t, err)
	_, err = searcher.Search(context.Background(), "one", 1)
	assert.Error(t, err)
}

func TestEngine_OpenSearcherMissingSource(t *testing.T) {
	e := newTestEngine(t, http.NotFoundHandler())
	_, err := e.OpenSearcher(context.Background(), "/idx", filepath.Join(t.TempDir(), "missing.tsv"))
	assert.Error(t, err)
}

func TestEngine_OpenSearcherNoID(t *testing.T) {
	source := filepath.Join(t.TempDir(), "wiki.tsv")
	require.NoError(t, os.WriteFile(source, []byte("1\tone\n"), 0o644))

	e := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	_, err := e.OpenSearcher(context.Background(), "/idx", source)
	assert.Error(t, err)
}

func TestEngine_HealthCheck(t *testing.T) {
	healthy := true
	e := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))

	assert.NoError(t, e.HealthCheck(context.Background()))
	healthy = false
	assert.Error(t, e.HealthCheck(context.Background()))
}
