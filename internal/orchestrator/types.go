package orchestrator

import "github.com/MrWong99/graphkb/internal/runmanager"

// RegisterSchemaResult is the result of [App.RegisterSchema].
type RegisterSchemaResult struct {
	KBID          string
	SchemaVersion int
	NodesCount    int
	RelsCount     int
	SourcesCount  int
}

// AddSourceResult is the result of [App.AddSource].
type AddSourceResult struct {
	OK bool
}

// IngestResult is the result of [App.Ingest]: one run's final tally.
type IngestResult struct {
	RunID        string
	Processed    int
	CreatedNodes int
	CreatedRels  int
	Errors       []runmanager.RunError
}

// SearchGraphResult mirrors [graphstore.QueryResult] at the public-operation
// boundary.
type SearchGraphResult struct {
	Rows  []map[string]any
	Count int
}

// SemanticSearchResult is one scored node returned by [App.SemanticSearch].
type SemanticSearchResult struct {
	Label      string
	Key        string
	Properties map[string]any
	Score      float64
}

// KBStatus is the full sync_status result: [runmanager.Status]'s run-derived
// fields plus the graph store's aggregate node/relationship counts, which
// runmanager has no dependency on and cannot derive itself.
type KBStatus struct {
	runmanager.Status
	TotalNodes         int64
	TotalRelationships int64
}
