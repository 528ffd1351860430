package services

import "path/filepath"

// Layout maps collection names to their on-disk locations.
// Paths come from configuration; the core never formats them any other way.
type Layout struct {
	DocumentsDir   string // raw sources: {DocumentsDir}/{name}.tsv
	ExperimentsDir string // indexes: {ExperimentsDir}/{name}/indexes/{IndexName}
	IndexName      string
}

// SourceExt is the extension of collection source files
const SourceExt = ".tsv"

// SourcePath returns the raw document source for a collection
func (l Layout) SourcePath(name string) string {
	return filepath.Join(l.DocumentsDir, name+SourceExt)
}

// IndexPath returns where the engine persists the collection's index
func (l Layout) IndexPath(name string) string {
	indexName := l.IndexName
	if indexName == "" {
		indexName = "index"
	}
	return filepath.Join(l.ExperimentsDir, name, "indexes", indexName)
}
