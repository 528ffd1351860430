package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cucumber/godog"
	"github.com/custodia-labs/sercha-retriever/internal/core/domain"
)

// lifecycleWorld carries one scenario's state between steps
type lifecycleWorld struct {
	t       *testing.T
	env     *testEnv
	lastErr error
	report  *domain.ActivationReport
	result  *domain.SearchResult
}

func (w *lifecycleWorld) sourceFile(name string, n int) error {
	docs := make([]string, n)
	for i := range docs {
		docs[i] = "document " + strconv.Itoa(i) + " of " + name
	}
	w.env.addSource(name, docs...)
	return nil
}

func (w *lifecycleWorld) build(name string) error {
	_, w.lastErr = w.env.indexer.Build(context.Background(), name)
	return nil
}

func (w *lifecycleWorld) activate() error {
	w.report, w.lastErr = w.env.registry.ActivateAll(context.Background())
	return nil
}

func (w *lifecycleWorld) search(name, query string, k int) error {
	w.result, w.lastErr = w.env.search.Search(context.Background(), name, query, k)
	return nil
}

func (w *lifecycleWorld) corrupt(name string) error {
	w.env.engine.CorruptIndex(w.env.layout.IndexPath(name))
	return nil
}

func (w *lifecycleWorld) succeeds() error {
	if w.lastErr != nil {
		return fmt.Errorf("expected success, got %v", w.lastErr)
	}
	return nil
}

func (w *lifecycleWorld) failsWith(msg string) error {
	if w.lastErr == nil {
		return fmt.Errorf("expected failure containing %q", msg)
	}
	if !strings.Contains(w.lastErr.Error(), msg) {
		return fmt.Errorf("expected error containing %q, got %v", msg, w.lastErr)
	}
	return nil
}

func (w *lifecycleWorld) statusIs(name, status string) error {
	coll, err := w.env.collections.Get(context.Background(), name)
	if err != nil {
		return err
	}
	if string(coll.Status) != status {
		return fmt.Errorf("collection %s is %s, want %s", name, coll.Status, status)
	}
	return nil
}

func (w *lifecycleWorld) activated(n int) error {
	if w.report == nil {
		return fmt.Errorf("no activation report: %v", w.lastErr)
	}
	if w.report.Count() != n {
		return fmt.Errorf("activated %v, want %d", w.report.Activated, n)
	}
	return nil
}

func (w *lifecycleWorld) hitsReturned(n int) error {
	if w.result == nil {
		return fmt.Errorf("no search result: %v", w.lastErr)
	}
	if len(w.result.TopK) != n {
		return fmt.Errorf("got %d hits, want %d", len(w.result.TopK), n)
	}
	return nil
}

func (w *lifecycleWorld) built(n int) error {
	if got := w.env.engine.BuildCalls(); got != n {
		return fmt.Errorf("engine built %d indexes, want %d", got, n)
	}
	return nil
}

func TestLifecycleFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name: "lifecycle",
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			w := &lifecycleWorld{t: t}

			sc.Before(func(ctx context.Context, s *godog.Scenario) (context.Context, error) {
				*w = lifecycleWorld{t: t, env: newTestEnv(t)}
				return ctx, nil
			})

			sc.Step(`^a source file "([^"]*)" with (\d+) documents$`, w.sourceFile)
			sc.Step(`^I build collection "([^"]*)"$`, w.build)
			sc.Step(`^I activate searchers$`, w.activate)
			sc.Step(`^I search "([^"]*)" for "([^"]*)" with k (\d+)$`, w.search)
			sc.Step(`^the index of "([^"]*)" is corrupted$`, w.corrupt)
			sc.Step(`^the request succeeds$`, w.succeeds)
			sc.Step(`^the request fails with "([^"]*)"$`, w.failsWith)
			sc.Step(`^collection "([^"]*)" is "([^"]*)"$`, w.statusIs)
			sc.Step(`^(\d+) collections are activated$`, w.activated)
			sc.Step(`^(\d+) hits are returned$`, w.hitsReturned)
			sc.Step(`^the engine built (\d+) indexes$`, w.built)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("lifecycle scenarios failed")
	}
}
