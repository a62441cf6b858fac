// Package schemadsl parses and validates the YAML schema DSL that declares a
// knowledge base's node labels, relationship types, embedding configuration,
// and per-source document mappings.
//
// Parse runs four validation layers — structural, cross-reference,
// path-syntax, and advisory — accumulating every error across all three
// error-producing layers (errors.Join semantics) rather than stopping at the
// first, so a caller sees the whole list of problems in one round trip.
package schemadsl

import "time"

// Schema is a versioned, immutable snapshot of a knowledge base's structure.
type Schema struct {
	// SchemaVersion increments every time a KB's schema is (re)stored.
	SchemaVersion int `yaml:"-"`

	// UpdatedAt is set when the schema is stored.
	UpdatedAt time.Time `yaml:"-"`

	Embedding     EmbeddingConfig    `yaml:"embedding"`
	Nodes         []NodeDef          `yaml:"nodes"`
	Relationships []RelationshipDef  `yaml:"relationships"`
	Mappings      MappingsConfig     `yaml:"mappings"`
}

// EmbeddingConfig selects the embedding provider and chunking strategy
// applied to primary-node text fields before merge.
type EmbeddingConfig struct {
	// Provider is "<family>:<model>", e.g. "ollama:nomic-embed-text".
	Provider string        `yaml:"provider"`
	Chunking ChunkingConfig `yaml:"chunking"`
}

// ChunkingConfig controls how a node's text fields are split before
// embedding.
type ChunkingConfig struct {
	// Strategy is one of by_headings, by_fields, sentence, paragraph.
	Strategy  string   `yaml:"strategy"`
	MaxTokens int      `yaml:"max_tokens"`
	Overlap   int      `yaml:"overlap"`
	Fields    []string `yaml:"fields,omitempty"`
}

// NodeDef declares a node label, its uniqueness key property, and the
// properties a mapping is allowed to populate on it.
type NodeDef struct {
	Label string   `yaml:"label"`
	Key   string   `yaml:"key"`
	Props []string `yaml:"props"`
}

// RelationshipDef declares a relationship type and the node labels it may
// connect.
type RelationshipDef struct {
	Type  string   `yaml:"type"`
	From  string   `yaml:"from"`
	To    string   `yaml:"to"`
	Props []string `yaml:"props,omitempty"`
}

// MappingsConfig holds the per-source extraction rules.
type MappingsConfig struct {
	Sources []SourceMapping `yaml:"sources"`
}

// SourceMapping declares how documents from one source are projected into a
// primary node and its outgoing edges.
type SourceMapping struct {
	SourceID     string      `yaml:"source_id"`
	DocumentType string      `yaml:"document_type"`
	Extract      ExtractDef  `yaml:"extract"`
	Edges        []EdgeDef   `yaml:"edges,omitempty"`
}

// ExtractDef declares the primary node label a document produces and the
// path expressions that populate its properties.
type ExtractDef struct {
	Node   string            `yaml:"node"`
	Assign map[string]string `yaml:"assign"`
}

// EdgeDef declares one outgoing edge a document may produce: its type, the
// path expression resolving the origin node's key, and the destination
// endpoint.
type EdgeDef struct {
	Type string       `yaml:"type"`
	From FromEndpoint `yaml:"from"`
	To   ToEndpoint   `yaml:"to"`
}

// FromEndpoint identifies the edge's origin node.
type FromEndpoint struct {
	Node string `yaml:"node"`
	Key  string `yaml:"key"`
}

// ToEndpoint identifies the edge's destination node, plus optional
// properties to populate on that node if it must be created as a secondary
// node.
type ToEndpoint struct {
	Node  string            `yaml:"node"`
	Key   string            `yaml:"key"`
	Props map[string]string `yaml:"props,omitempty"`
}
