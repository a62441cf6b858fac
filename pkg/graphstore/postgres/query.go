package postgres

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"context"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/MrWong99/graphkb/pkg/graphstore"
)

// writeClausePattern rejects query text containing a write-intent clause,
// matched case-insensitively on word boundaries after comment stripping —
// the correction spec §9 calls for over a naive substring check.
var writeClausePattern = regexp.MustCompile(`(?i)\b(CREATE|MERGE|DELETE|REMOVE|SET|DROP|CALL\s+db\.\w*)\b`)

// sqlCommentPattern strips -- line comments and /* */ block comments before
// the write-clause check, so a commented-out DELETE cannot smuggle through
// and so a legitimate comment cannot trigger a false positive either way.
var sqlCommentPattern = regexp.MustCompile(`(?s)--[^\n]*|/\*.*?\*/`)

// SearchGraph implements [graphstore.Store].
func (s *Store) SearchGraph(ctx context.Context, kbID string, query string, params []any) (graphstore.QueryResult, error) {
	stripped := sqlCommentPattern.ReplaceAllString(query, " ")
	if writeClausePattern.MatchString(stripped) {
		return graphstore.QueryResult{}, &graphstore.WriteForbidden{Query: query}
	}

	args := append([]any{kbID}, params...)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return graphstore.QueryResult{}, &graphstore.StoreError{Op: "search_graph", KBID: kbID, Detail: "exec", Err: err}
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var result graphstore.QueryResult
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return graphstore.QueryResult{}, &graphstore.StoreError{Op: "search_graph", KBID: kbID, Detail: "scan row", Err: err}
		}
		row := make(map[string]any, len(values))
		for i, v := range values {
			row[string(fields[i].Name)] = v
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return graphstore.QueryResult{}, &graphstore.StoreError{Op: "search_graph", KBID: kbID, Detail: "row iteration", Err: err}
	}
	result.Count = len(result.Rows)
	return result, nil
}

// SemanticSearch implements [graphstore.Store]. Label filters combine with
// OR, property filters combine with AND, both applied after the
// approximate-nearest-neighbour pass (spec §4.5).
func (s *Store) SemanticSearch(ctx context.Context, kbID string, queryVector []float32, topK int, filters graphstore.SearchFilters) ([]graphstore.ScoredNode, error) {
	queryVec := pgvector.NewVector(queryVector)
	args := []any{kbID, queryVec}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{"kb_id = $1", "embedding IS NOT NULL"}
	if len(filters.Labels) > 0 {
		conditions = append(conditions, "label = ANY("+next(filters.Labels)+"::text[])")
	}
	for k, v := range filters.Properties {
		jsonVal, err := json.Marshal(map[string]any{k: v})
		if err != nil {
			return nil, &graphstore.StoreError{Op: "semantic_search", KBID: kbID, Detail: "marshal property filter", Err: err}
		}
		conditions = append(conditions, "properties @> "+next(string(jsonVal))+"::jsonb")
	}

	args = append(args, topK)
	limitArg := fmt.Sprintf("$%d", len(args))

	q := fmt.Sprintf(`
		SELECT key, label, properties, embedding, source_id, run_id, updated_at,
		       embedding <=> $2 AS distance
		FROM   nodes
		WHERE  %s
		ORDER  BY distance
		LIMIT  %s`, strings.Join(conditions, "\n  AND "), limitArg)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, &graphstore.StoreError{Op: "semantic_search", KBID: kbID, Detail: "exec", Err: err}
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (graphstore.ScoredNode, error) {
		var (
			sn        graphstore.ScoredNode
			propsJSON []byte
			vec       pgvector.Vector
			distance  float64
		)
		if err := row.Scan(&sn.Node.Key, &sn.Node.Label, &propsJSON, &vec, &sn.Node.SourceID, &sn.Node.RunID, &sn.Node.UpdatedAt, &distance); err != nil {
			return graphstore.ScoredNode{}, err
		}
		if err := json.Unmarshal(propsJSON, &sn.Node.Properties); err != nil {
			return graphstore.ScoredNode{}, fmt.Errorf("unmarshal node properties: %w", err)
		}
		sn.Node.KBID = kbID
		sn.Node.Embedding = vec.Slice()
		sn.Score = 1.0 - distance
		return sn, nil
	})
	if err != nil {
		return nil, &graphstore.StoreError{Op: "semantic_search", KBID: kbID, Detail: "scan rows", Err: err}
	}
	if results == nil {
		results = []graphstore.ScoredNode{}
	}
	return results, nil
}

// Counts implements [graphstore.Store].
func (s *Store) Counts(ctx context.Context, kbID string) (graphstore.KBCounts, error) {
	var counts graphstore.KBCounts
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM nodes WHERE kb_id = $1`, kbID).Scan(&counts.TotalNodes)
	if err != nil {
		return graphstore.KBCounts{}, &graphstore.StoreError{Op: "counts", KBID: kbID, Detail: "count nodes", Err: err}
	}
	err = s.pool.QueryRow(ctx, `SELECT count(*) FROM edges WHERE kb_id = $1`, kbID).Scan(&counts.TotalRelationships)
	if err != nil {
		return graphstore.KBCounts{}, &graphstore.StoreError{Op: "counts", KBID: kbID, Detail: "count edges", Err: err}
	}
	return counts, nil
}
