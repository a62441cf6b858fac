// Package graphstore defines the storage abstraction for the ingestion
// orchestrator's property graph: typed, labeled nodes and directed typed
// edges scoped to a knowledge base, with provenance tracking and vector
// similarity search.
//
// [Store] is public so that external packages can supply alternative graph
// backends (PostgreSQL/pgvector, or an in-memory fake for tests) without
// depending on orchestrator internals.
//
// Every implementation must be safe for concurrent use.
package graphstore

import "context"

// Store is the graph persistence layer (component C5). It owns all writes
// to the property graph and serves both the merge path used during
// ingestion and the read-only query surface exposed to callers.
//
// Merge semantics: MergeNode and MergeEdge behave as upserts keyed by
// identity, not failures on duplicates — see each method's doc for the
// exact on-create/on-match contract required by the idempotent-ingestion
// invariant (spec §4.5, §8 property 4).
type Store interface {
	// EnsureKB idempotently prepares kb for use: creates its backing schema
	// objects if absent (node/edge tables are shared across KBs; what is
	// KB-specific is the partial vector index) and creates or verifies a
	// vector index over node embeddings dimensioned for dimensions.
	// Calling EnsureKB again with the same kb_id and dimensions is a no-op;
	// calling it with a different dimensions value for an existing KB
	// returns an error (the vector column width is fixed at first use).
	EnsureKB(ctx context.Context, kbID string, dimensions int) error

	// MergeNode upserts a node identified by (kb_id, key):
	//
	//	on create: set all properties, embedding, and provenance
	//	on match:  overwrite all properties, embedding, and provenance
	//
	// A match whose stored Label differs from node.Label is rejected with a
	// [StoreError] — labels are not part of the node's identity but must be
	// internally consistent once established.
	MergeNode(ctx context.Context, kbID string, node Node) (created bool, err error)

	// MergeEdge upserts the directed edge identified by
	// (kb_id, type, from.key, to.key). Both endpoint nodes must already
	// exist in kbID; if either is missing, MergeEdge returns a [StoreError].
	//
	//	on create: set properties and provenance
	//	on match:  overwrite properties and provenance
	MergeEdge(ctx context.Context, kbID string, edge Edge) (created bool, err error)

	// SemanticSearch returns the topK nodes in kbID whose embedding is
	// closest (cosine similarity) to queryVector, after applying filters
	// post-ANN. Results are ordered by descending score.
	SemanticSearch(ctx context.Context, kbID string, queryVector []float32, topK int, filters SearchFilters) ([]ScoredNode, error)

	// SearchGraph executes query as a read-only, kb_id-scoped parameterized
	// query against the graph. query must not contain write-intent clauses
	// (CREATE, MERGE, DELETE, REMOVE, SET, DROP, or a `CALL db.*`
	// procedure) — such queries are rejected with [WriteForbidden] before
	// any I/O is attempted. params are bound as positional parameters after
	// the implicit kb_id parameter.
	SearchGraph(ctx context.Context, kbID string, query string, params []any) (QueryResult, error)

	// Counts returns the aggregate node/relationship counts for kbID, used
	// to derive KBStatus (spec §4.6).
	Counts(ctx context.Context, kbID string) (KBCounts, error)

	// Ping verifies connectivity to the underlying store, for readiness
	// checks.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close()
}
