package graphstore

import "time"

// Provenance records who produced a node or relationship and when. Every
// mutating write carries one: the fields are set on create and overwritten
// on every subsequent match, per the merge contract in [Store].
type Provenance struct {
	// KBID identifies the owning knowledge base.
	KBID string

	// SourceID identifies the source that produced this record.
	SourceID string

	// RunID identifies the ingestion run that last wrote this record.
	RunID string

	// UpdatedAt is the timestamp of the last write.
	UpdatedAt time.Time
}

// Node is a labeled property record in the graph. Nodes are uniquely
// identified within a KB by Key alone — Label is carried for convenience and
// defensive consistency checking, not as part of the identity (see
// DESIGN.md's resolution of the (kb_id, key) vs (kb_id, label, key)
// ambiguity in spec §3/§4.5).
type Node struct {
	// Label classifies the node (e.g., "Document", "Person").
	Label string

	// Key is the node's uniqueness key value within its KB.
	Key string

	// Properties holds the node's declared properties plus any schema
	// advisories; arbitrary JSON-compatible values.
	Properties map[string]any

	// Embedding is the node's vector representation, present only when its
	// mapping emitted embeddable text.
	Embedding []float32

	Provenance
}

// Edge is a typed directed relationship between two nodes of the same KB.
// Its identity is (kb_id, type, from.key, to.key).
type Edge struct {
	// Type is the relationship's UPPER_SNAKE label (e.g., "AUTHORED_BY").
	Type string

	// FromLabel and FromKey identify the origin node.
	FromLabel string
	FromKey   string

	// ToLabel and ToKey identify the destination node.
	ToLabel string
	ToKey   string

	// Properties holds mapping-declared edge properties.
	Properties map[string]any

	Provenance
}

// SearchFilters narrows a [Store.SemanticSearch] call. Multiple Labels
// combine with OR; multiple entries in Properties combine with AND — both
// applied after the approximate-nearest-neighbour pass, per spec §4.5.
type SearchFilters struct {
	// Labels restricts results to nodes whose Label is in this list. An
	// empty list matches every label.
	Labels []string

	// Properties requires every key/value pair to be present and equal in
	// the node's Properties map.
	Properties map[string]any
}

// ScoredNode pairs a retrieved node with its similarity score (cosine
// similarity, higher is better — the inverse of cosine distance).
type ScoredNode struct {
	Node  Node
	Score float64
}

// QueryResult is the outcome of [Store.SearchGraph]: property-map rows plus
// a count, matching the `{rows, count}` result shape of the `search_graph`
// public operation (spec §6).
type QueryResult struct {
	Rows  []map[string]any
	Count int
}

// KBCounts reports the aggregate size of a knowledge base, used by
// sync_status (spec §4.6).
type KBCounts struct {
	TotalNodes         int64
	TotalRelationships int64
}
