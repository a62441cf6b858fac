package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/MrWong99/graphkb/pkg/graphstore"
)

// MergeNode implements [graphstore.Store]. It upserts a node keyed by
// (kb_id, key):
//
//	on create: set all properties, embedding, and provenance
//	on match:  overwrite all properties, embedding, and provenance
//
// If an existing row's label differs from node.Label, the merge is rejected
// with a [graphstore.StoreError] rather than silently relabeling the node.
func (s *Store) MergeNode(ctx context.Context, kbID string, node graphstore.Node) (bool, error) {
	var existingLabel string
	lookupErr := s.pool.QueryRow(ctx, `SELECT label FROM nodes WHERE kb_id = $1 AND key = $2`, kbID, node.Key).Scan(&existingLabel)
	existed := lookupErr == nil
	switch {
	case lookupErr == nil:
		if existingLabel != node.Label {
			return false, &graphstore.StoreError{
				Op:     "merge_node",
				KBID:   kbID,
				Detail: fmt.Sprintf("key %q already labeled %q, cannot merge as %q", node.Key, existingLabel, node.Label),
			}
		}
	case isNoRows(lookupErr):
		// Falls through to insert below.
	default:
		return false, &graphstore.StoreError{Op: "merge_node", KBID: kbID, Detail: "lookup existing label", Err: lookupErr}
	}

	propsJSON, err := json.Marshal(node.Properties)
	if err != nil {
		return false, &graphstore.StoreError{Op: "merge_node", KBID: kbID, Detail: "marshal properties", Err: err}
	}

	var embedding any
	if node.Embedding != nil {
		embedding = pgvector.NewVector(node.Embedding)
	}

	const q = `
		INSERT INTO nodes (kb_id, key, label, properties, embedding, source_id, run_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (kb_id, key) DO UPDATE SET
		    label       = EXCLUDED.label,
		    properties  = EXCLUDED.properties,
		    embedding   = EXCLUDED.embedding,
		    source_id   = EXCLUDED.source_id,
		    run_id      = EXCLUDED.run_id,
		    updated_at  = now()`

	if _, err := s.pool.Exec(ctx, q, kbID, node.Key, node.Label, propsJSON, embedding, node.SourceID, node.RunID); err != nil {
		return false, &graphstore.StoreError{Op: "merge_node", KBID: kbID, Detail: "exec", Err: err}
	}
	return !existed, nil
}

// MergeEdge implements [graphstore.Store]. Both endpoint nodes must already
// exist in kbID — enforced by the edges table's composite foreign keys —
// or the merge fails with a [graphstore.StoreError].
func (s *Store) MergeEdge(ctx context.Context, kbID string, edge graphstore.Edge) (bool, error) {
	propsJSON, err := json.Marshal(edge.Properties)
	if err != nil {
		return false, &graphstore.StoreError{Op: "merge_edge", KBID: kbID, Detail: "marshal properties", Err: err}
	}

	var existed bool
	err = s.pool.QueryRow(ctx, `
		SELECT true FROM edges
		WHERE kb_id = $1 AND type = $2 AND from_label = $3 AND from_key = $4 AND to_label = $5 AND to_key = $6`,
		kbID, edge.Type, edge.FromLabel, edge.FromKey, edge.ToLabel, edge.ToKey,
	).Scan(&existed)
	if err != nil && !isNoRows(err) {
		return false, &graphstore.StoreError{Op: "merge_edge", KBID: kbID, Detail: "lookup existing edge", Err: err}
	}

	const q = `
		INSERT INTO edges (kb_id, type, from_label, from_key, to_label, to_key, properties, source_id, run_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (kb_id, type, from_label, from_key, to_label, to_key) DO UPDATE SET
		    properties  = EXCLUDED.properties,
		    source_id   = EXCLUDED.source_id,
		    run_id      = EXCLUDED.run_id,
		    updated_at  = now()`

	if _, err := s.pool.Exec(ctx, q, kbID, edge.Type, edge.FromLabel, edge.FromKey, edge.ToLabel, edge.ToKey, propsJSON, edge.SourceID, edge.RunID); err != nil {
		return false, &graphstore.StoreError{Op: "merge_edge", KBID: kbID, Detail: "exec (endpoints must exist)", Err: err}
	}
	return !existed, nil
}
