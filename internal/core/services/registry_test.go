package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/custodia-labs/sercha-retriever/internal/core/domain"
	"github.com/custodia-labs/sercha-retriever/internal/core/ports/driven/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearcherRegistry_ActivateAll(t *testing.T) {
	env := newTestEnv(t)
	env.addSource("a", "one")
	env.addSource("b", "two")
	env.addSource("pending", "three")
	ctx := context.Background()

	_, err := env.indexer.Build(ctx, "a")
	require.NoError(t, err)
	_, err = env.indexer.Build(ctx, "b")
	require.NoError(t, err)

	report, err := env.registry.ActivateAll(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, report.Activated)
	assert.Equal(t, []string{"pending"}, report.NotReady)
	assert.Empty(t, report.AlreadyActive)
	assert.False(t, report.HasFailures())

	for _, name := range []string{"a", "b"} {
		coll, _ := env.store.Get(ctx, name)
		assert.Equal(t, domain.StatusSearchable, coll.Status)
	}
	pending, _ := env.store.Get(ctx, "pending")
	assert.Equal(t, domain.StatusUnindexed, pending.Status, "activation never promotes an unindexed collection")
	assert.Equal(t, 0, env.engine.BuildCalls()-2, "activation never triggers a build")
}

func TestSearcherRegistry_ActivateAllIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.addSource("a", "one")
	ctx := context.Background()

	_, err := env.indexer.Build(ctx, "a")
	require.NoError(t, err)

	first, err := env.registry.ActivateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Count())

	h1, err := env.registry.GetSearcher(ctx, "a")
	require.NoError(t, err)

	second, err := env.registry.ActivateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Count())
	assert.Equal(t, []string{"a"}, second.AlreadyActive)

	h2, err := env.registry.GetSearcher(ctx, "a")
	require.NoError(t, err)
	assert.Same(t, h1, h2, "handle must never be re-constructed")
	assert.Equal(t, 1, env.engine.OpenCalls())
	assert.Equal(t, []string{"a"}, env.registry.Active())
}

func TestSearcherRegistry_PartialFailureIsolation(t *testing.T) {
	env := newTestEnv(t)
	env.addSource("good", "alpha beta", "gamma")
	env.addSource("bad", "delta")
	ctx := context.Background()

	_, err := env.indexer.Build(ctx, "good")
	require.NoError(t, err)
	_, err = env.indexer.Build(ctx, "bad")
	require.NoError(t, err)
	env.engine.CorruptIndex(env.layout.IndexPath("bad"))

	report, err := env.registry.ActivateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, report.Activated)
	require.Contains(t, report.Failed, "bad")
	assert.Contains(t, report.Failed["bad"], "activation failed")

	bad, _ := env.store.Get(ctx, "bad")
	assert.Equal(t, domain.StatusIndexed, bad.Status)
	assert.NotEmpty(t, bad.LastError)

	result, err := env.search.Search(ctx, "good", "alpha", 1)
	require.NoError(t, err)
	require.Len(t, result.TopK, 1)
	assert.Equal(t, "0", result.TopK[0].DocumentID)

	_, err = env.registry.GetSearcher(ctx, "bad")
	assert.ErrorIs(t, err, domain.ErrNotReady)
}

func TestSearcherRegistry_EnginePanicIsolated(t *testing.T) {
	env := newTestEnv(t)
	env.store.Put(&domain.Collection{Name: "a", Status: domain.StatusIndexed, IndexPath: "/x"})

	registry := NewSearcherRegistry(SearcherRegistryConfig{
		Store:       env.store,
		Coordinator: env.coordinator,
		Engine:      &panicEngine{MockRetrievalEngine: env.engine},
		Guard:       env.guard,
		Logger:      discardLogger(),
	})

	report, err := registry.ActivateAll(context.Background())
	require.NoError(t, err)
	assert.Contains(t, report.Failed["a"], "panicked")
}

func TestSearcherRegistry_GetSearcher(t *testing.T) {
	env := newTestEnv(t)
	env.addSource("unindexed", "one")
	env.addSource("indexed", "two")
	env.addSource("source-only", "three")
	ctx := context.Background()

	_, err := env.collections.Register(ctx, "unindexed")
	require.NoError(t, err)
	_, err = env.indexer.Build(ctx, "indexed")
	require.NoError(t, err)

	tests := []struct {
		name    string
		wantErr error
		wantMsg string
	}{
		{"never-registered", domain.ErrNotFound, "never registered"},
		{"source-only", domain.ErrNotFound, "never registered"},
		{"unindexed", domain.ErrNotReady, "POST /api/index/unindexed"},
		{"indexed", domain.ErrNotReady, "POST /init_searchers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.registry.GetSearcher(ctx, tt.name)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
	assert.Equal(t, 0, env.engine.OpenCalls(), "lookups never activate")
}

func TestSearcherRegistry_ReloadsSearchableAfterRestart(t *testing.T) {
	env := newTestEnv(t)
	env.addSource("a", "one")
	ctx := context.Background()

	_, err := env.indexer.Build(ctx, "a")
	require.NoError(t, err)
	_, err = env.registry.ActivateAll(ctx)
	require.NoError(t, err)

	// a fresh registry over the same store stands in for a restarted process
	restarted := NewSearcherRegistry(SearcherRegistryConfig{
		Store:       env.store,
		Coordinator: env.coordinator,
		Engine:      env.engine,
		Guard:       env.guard,
		Logger:      discardLogger(),
	})

	_, err = restarted.GetSearcher(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrNotReady)

	report, err := restarted.ActivateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, report.Activated)

	_, err = restarted.GetSearcher(ctx, "a")
	assert.NoError(t, err)
}

func TestSearcherRegistry_ConcurrentActivation(t *testing.T) {
	env := newTestEnv(t)
	env.addSource("a", "one")
	env.addSource("b", "two")
	ctx := context.Background()

	_, err := env.indexer.Build(ctx, "a")
	require.NoError(t, err)
	_, err = env.indexer.Build(ctx, "b")
	require.NoError(t, err)
	env.engine.OpenDelay = 10 * time.Millisecond

	var wg sync.WaitGroup
	reports := make([]*domain.ActivationReport, 4)
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := env.registry.ActivateAll(ctx)
			assert.NoError(t, err)
			reports[i] = r
		}(i)
	}
	wg.Wait()

	total := 0
	for _, r := range reports {
		total += r.Count()
	}
	assert.Equal(t, 2, total, "each collection is activated exactly once")
	assert.Equal(t, 2, env.engine.OpenCalls())
	assert.Equal(t, 1, env.engine.MaxConcurrentHeavyOps())
}

func TestSearcherRegistry_BusyDuringBuild(t *testing.T) {
	env := newTestEnv(t, withPolicy(LockPolicyFail, 0))
	env.addSource("a", "one")
	env.engine.BuildDelay = 50 * time.Millisecond
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := env.indexer.Build(ctx, "a")
		done <- err
	}()

	// wait until the build holds the accelerator
	require.Eventually(t, func() bool {
		holder, _ := env.guard.Holder()
		return holder != ""
	}, time.Second, time.Millisecond)

	_, err := env.registry.ActivateAll(ctx)
	assert.ErrorIs(t, err, domain.ErrBusy)
	require.NoError(t, <-done)
}

func TestSearcherRegistry_MarkSearchableFailureDropsHandle(t *testing.T) {
	env := newTestEnv(t)
	env.addSource("a", "one")
	ctx := context.Background()
	_, err := env.indexer.Build(ctx, "a")
	require.NoError(t, err)

	env.store.SaveFn = func(c *domain.Collection) error {
		if c.Status == domain.StatusSearchable {
			return errors.New("db unavailable")
		}
		return nil
	}

	report, err := env.registry.ActivateAll(ctx)
	require.NoError(t, err)
	assert.Contains(t, report.Failed, "a")
	assert.Empty(t, env.registry.Active())
}

func TestSearcherRegistry_HandleHiddenUntilSearchable(t *testing.T) {
	env := newTestEnv(t)
	env.addSource("a", "one")
	ctx := context.Background()
	_, err := env.indexer.Build(ctx, "a")
	require.NoError(t, err)

	var getErr, searchErr error
	promoted := false
	env.store.SaveFn = func(c *domain.Collection) error {
		if c.Status == domain.StatusSearchable {
			promoted = true
			_, getErr = env.registry.GetSearcher(ctx, c.Name)
			_, searchErr = env.search.Search(ctx, c.Name, "one", 1)
		}
		env.store.Put(c)
		return nil
	}

	report, err := env.registry.ActivateAll(ctx)
	require.NoError(t, err)
	require.True(t, promoted, "promotion must save the searchable record")
	assert.ErrorIs(t, getErr, domain.ErrNotReady, "no handle before the record is searchable")
	assert.ErrorIs(t, searchErr, domain.ErrNotReady)
	assert.Equal(t, []string{"a"}, report.Activated)

	_, err = env.registry.GetSearcher(ctx, "a")
	assert.NoError(t, err)

	result, err := env.search.Search(ctx, "a", "one", 1)
	require.NoError(t, err)
	assert.False(t, result.Cached, "nothing may be cached during promotion")
	assert.Len(t, result.TopK, 1)
}

// closeErrEngine hands out searchers whose Close fails
type closeErrEngine struct {
	*mocks.MockRetrievalEngine
	closed int
}

func (e *closeErrEngine) OpenSearcher(ctx context.Context, indexPath, sourcePath string) (domain.Searcher, error) {
	return &closeErrSearcher{engine: e}, nil
}

type closeErrSearcher struct {
	engine *closeErrEngine
}

func (s *closeErrSearcher) Search(ctx context.Context, query string, k int) ([]domain.Hit, error) {
	return nil, nil
}

func (s *closeErrSearcher) Close() error {
	s.engine.closed++
	return errors.New("device busy")
}

func TestSearcherRegistry_PromotionFailureLogsCloseError(t *testing.T) {
	env := newTestEnv(t)
	env.store.Put(&domain.Collection{Name: "a", Status: domain.StatusIndexed, IndexPath: "/x"})
	env.store.SaveFn = func(c *domain.Collection) error { return errors.New("db unavailable") }

	var logs bytes.Buffer
	engine := &closeErrEngine{MockRetrievalEngine: env.engine}
	registry := NewSearcherRegistry(SearcherRegistryConfig{
		Store:       env.store,
		Coordinator: env.coordinator,
		Engine:      engine,
		Guard:       env.guard,
		Logger:      slog.New(slog.NewTextHandler(&logs, nil)),
	})

	report, err := registry.ActivateAll(context.Background())
	require.NoError(t, err)
	assert.Contains(t, report.Failed, "a")
	assert.Equal(t, 1, engine.closed, "the unpublished searcher must be released")
	assert.Contains(t, logs.String(), "failed to close searcher")
	assert.Contains(t, logs.String(), "collection=a")
	assert.Contains(t, logs.String(), "device busy")
}

func TestSearcherRegistry_Close(t *testing.T) {
	env := newTestEnv(t)
	env.addSource("a", "one")
	ctx := context.Background()
	_, err := env.indexer.Build(ctx, "a")
	require.NoError(t, err)
	_, err = env.registry.ActivateAll(ctx)
	require.NoError(t, err)

	h, err := env.registry.GetSearcher(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, env.registry.Close())
	assert.True(t, h.Searcher.(*mocks.MockSearcher).Closed())
	assert.Empty(t, env.registry.Active())
}
