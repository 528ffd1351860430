package domain

import (
	"fmt"
	"regexp"
	"time"
)

// CollectionStatus is the lifecycle stage of a collection
type CollectionStatus string

const (
	StatusUnindexed  CollectionStatus = "unindexed"
	StatusIndexed    CollectionStatus = "indexed"
	StatusSearchable CollectionStatus = "searchable"
)

// Valid reports whether s is a known status
func (s CollectionStatus) Valid() bool {
	switch s {
	case StatusUnindexed, StatusIndexed, StatusSearchable:
		return true
	}
	return false
}

// HasIndex reports whether a collection in this status must carry an index path
func (s CollectionStatus) HasIndex() bool {
	return s == StatusIndexed || s == StatusSearchable
}

// CanTransitionTo reports whether next is the single forward step after s.
// There are no skips and no transitions back.
func (s CollectionStatus) CanTransitionTo(next CollectionStatus) bool {
	switch s {
	case StatusUnindexed:
		return next == StatusIndexed
	case StatusIndexed:
		return next == StatusSearchable
	}
	return false
}

// Collection is a named TSV document set and its lifecycle state
type Collection struct {
	Name       string           `json:"name"`
	SourcePath string           `json:"source_path"`
	IndexPath  string           `json:"index_path,omitempty"`
	Status     CollectionStatus `json:"status"`

	// DocumentCount is reported by the engine when the index is built
	DocumentCount int `json:"document_count"`

	// LastError holds the most recent build or activation failure.
	// Cleared when the next transition succeeds.
	LastError string `json:"last_error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	IndexedAt   *time.Time `json:"indexed_at,omitempty"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
}

// NewCollection creates an unindexed collection record
func NewCollection(name, sourcePath string) *Collection {
	return &Collection{
		Name:       name,
		SourcePath: sourcePath,
		Status:     StatusUnindexed,
		CreatedAt:  time.Now(),
	}
}

// Clone returns a copy safe to hand out of a store
func (c *Collection) Clone() *Collection {
	if c == nil {
		return nil
	}
	out := *c
	if c.IndexedAt != nil {
		t := *c.IndexedAt
		out.IndexedAt = &t
	}
	if c.ActivatedAt != nil {
		t := *c.ActivatedAt
		out.ActivatedAt = &t
	}
	return &out
}

// Validate checks the index_path/status invariant
func (c *Collection) Validate() error {
	if err := ValidateCollectionName(c.Name); err != nil {
		return err
	}
	if !c.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, c.Status)
	}
	if c.Status.HasIndex() != (c.IndexPath != "") {
		return fmt.Errorf("%w: collection %q has status %s with index path %q", ErrInvalidArgument, c.Name, c.Status, c.IndexPath)
	}
	return nil
}

// IsSearchable reports whether queries can be routed to this collection
func (c *Collection) IsSearchable() bool {
	return c.Status == StatusSearchable
}

var collectionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateCollectionName rejects names that could escape the documents or experiments directory
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name %q must match %s", ErrInvalidArgument, name, collectionNamePattern.String())
	}
	return nil
}

// BuildSummary describes a completed index build
type BuildSummary struct {
	Collection    string        `json:"collection"`
	IndexPath     string        `json:"index_path"`
	DocumentCount int           `json:"document_count"`
	Took          time.Duration `json:"took"`
}

// IndexSummary is what the retrieval engine reports after persisting an index
type IndexSummary struct {
	DocumentCount int `json:"document_count"`
}
