package domain

import (
	"context"
	"sort"
	"time"
)

// Searcher is a loaded, query-ready engine instance bound to one index.
// Implementations must be safe for concurrent Search calls.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]Hit, error)
	Close() error
}

// SearcherHandle owns the engine searcher for one searchable collection
type SearcherHandle struct {
	CollectionName string
	Searcher       Searcher
	ActivatedAt    time.Time
}

// ActivationReport summarises one init_searchers pass
type ActivationReport struct {
	// Activated lists collections promoted to searchable by this pass
	Activated []string `json:"activated"`

	// AlreadyActive lists collections that were searchable before this pass
	AlreadyActive []string `json:"already_active"`

	// NotReady lists unindexed collections skipped by this pass
	NotReady []string `json:"not_ready"`

	// Failed maps collection name to the activation error
	Failed map[string]string `json:"failed,omitempty"`
}

// NewActivationReport creates an empty report
func NewActivationReport() *ActivationReport {
	return &ActivationReport{
		Activated:     []string{},
		AlreadyActive: []string{},
		NotReady:      []string{},
		Failed:        map[string]string{},
	}
}

// Count is the number of collections newly activated
func (r *ActivationReport) Count() int {
	return len(r.Activated)
}

// HasFailures reports whether any collection failed to activate
func (r *ActivationReport) HasFailures() bool {
	return len(r.Failed) > 0
}

// FailedNames returns the failed collection names in sorted order
func (r *ActivationReport) FailedNames() []string {
	names := make([]string, 0, len(r.Failed))
	for name := range r.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
