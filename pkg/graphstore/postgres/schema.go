// Package postgres provides a PostgreSQL-backed implementation of
// [graphstore.Store]: a shared `nodes`/`edges` table pair holding every
// knowledge base's property graph, with a per-KB partial HNSW vector index
// over node embeddings.
//
// The pgvector extension must be available in the target database; [Migrate]
// installs it automatically via CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	_ = store.EnsureKB(ctx, "demo", 1536)
//	_, err = store.MergeNode(ctx, "demo", node)
package postgres

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ddlGraph creates the shared nodes/edges tables. Node identity is
// (kb_id, key) — not (kb_id, label, key); see DESIGN.md's resolution of the
// §3/§4.5 ambiguity. Edge identity is
// (kb_id, type, from_label, from_key, to_label, to_key), with composite
// foreign keys into nodes enforcing that both endpoints exist before a
// MERGE can succeed.
const ddlGraph = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS nodes (
    kb_id       TEXT         NOT NULL,
    key         TEXT         NOT NULL,
    label       TEXT         NOT NULL,
    properties  JSONB        NOT NULL DEFAULT '{}',
    embedding   vector,
    source_id   TEXT         NOT NULL DEFAULT '',
    run_id      TEXT         NOT NULL DEFAULT '',
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (kb_id, key)
);

CREATE INDEX IF NOT EXISTS idx_nodes_kb_label ON nodes (kb_id, label);

CREATE TABLE IF NOT EXISTS edges (
    kb_id       TEXT         NOT NULL,
    type        TEXT         NOT NULL,
    from_label  TEXT         NOT NULL,
    from_key    TEXT         NOT NULL,
    to_label    TEXT         NOT NULL,
    to_key      TEXT         NOT NULL,
    properties  JSONB        NOT NULL DEFAULT '{}',
    source_id   TEXT         NOT NULL DEFAULT '',
    run_id      TEXT         NOT NULL DEFAULT '',
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (kb_id, type, from_label, from_key, to_label, to_key),
    FOREIGN KEY (kb_id, from_key) REFERENCES nodes (kb_id, key) ON DELETE CASCADE,
    FOREIGN KEY (kb_id, to_key)   REFERENCES nodes (kb_id, key) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_edges_kb_from ON edges (kb_id, from_key);
CREATE INDEX IF NOT EXISTS idx_edges_kb_to   ON edges (kb_id, to_key);
CREATE INDEX IF NOT EXISTS idx_edges_kb_type  ON edges (kb_id, type);

CREATE TABLE IF NOT EXISTS kb_dimensions (
    kb_id       TEXT PRIMARY KEY,
    dimensions  INT  NOT NULL
);
`

// kbIDPattern matches the kb_id grammar from spec §3 and is checked before
// kb_id is ever interpolated into a DDL statement (the vector index name and
// its WHERE clause cannot be parameterized in PostgreSQL DDL).
var kbIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Migrate creates the shared nodes/edges tables and the pgvector extension.
// It is idempotent and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlGraph); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// ensureKBIndex creates the per-KB partial HNSW vector index, named
// "<kb_id>_vector_index", scoped to kb_id's rows only. dimensions is
// recorded in kb_dimensions on first call; a later call for the same kb_id
// with a different dimensions value is rejected, since a shared vector
// column has one width for the whole table (spec §3's open-question
// resolution, recorded in DESIGN.md).
func ensureKBIndex(ctx context.Context, pool *pgxpool.Pool, kbID string, dimensions int) error {
	if !kbIDPattern.MatchString(kbID) {
		return fmt.Errorf("postgres: ensure kb index: invalid kb_id %q", kbID)
	}

	var existing int
	err := pool.QueryRow(ctx, `SELECT dimensions FROM kb_dimensions WHERE kb_id = $1`, kbID).Scan(&existing)
	switch {
	case err == nil:
		if existing != dimensions {
			return fmt.Errorf("postgres: ensure kb index: kb %q already uses dimensions %d, cannot switch to %d", kbID, existing, dimensions)
		}
	case isNoRows(err):
		if _, err := pool.Exec(ctx, `INSERT INTO kb_dimensions (kb_id, dimensions) VALUES ($1, $2)`, kbID, dimensions); err != nil {
			return fmt.Errorf("postgres: ensure kb index: record dimensions: %w", err)
		}
	default:
		return fmt.Errorf("postgres: ensure kb index: lookup dimensions: %w", err)
	}

	indexName := kbID + "_vector_index"
	// kbID has already been validated against kbIDPattern above; safe to
	// interpolate into the index name and WHERE clause, mirroring the
	// teacher's ddlL2(embeddingDimensions) parameter-baking pattern.
	stmt := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s ON nodes USING hnsw (embedding vector_cosine_ops) WHERE kb_id = '%s'`,
		pgIdentifier(indexName), kbID,
	)
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("postgres: ensure kb index: create index: %w", err)
	}
	return nil
}

// pgIdentifier double-quotes name for use as a PostgreSQL identifier. Safe
// here because name is always derived from a kb_id already validated
// against kbIDPattern (no quote characters possible).
func pgIdentifier(name string) string {
	return `"` + name + `"`
}
