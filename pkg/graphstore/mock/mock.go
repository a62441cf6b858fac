// Package mock provides a test double for the graphstore.Store interface.
//
// Use Store to script responses for each method and to verify which
// knowledge bases, nodes, and edges were submitted, without a live
// PostgreSQL instance.
//
// Example:
//
//	s := &mock.Store{MergeNodeResult: true}
//	created, _ := s.MergeNode(ctx, "demo", node)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/graphkb/pkg/graphstore"
)

// MergeNodeCall records a single invocation of MergeNode.
type MergeNodeCall struct {
	KBID string
	Node graphstore.Node
}

// MergeEdgeCall records a single invocation of MergeEdge.
type MergeEdgeCall struct {
	KBID string
	Edge graphstore.Edge
}

// SearchGraphCall records a single invocation of SearchGraph.
type SearchGraphCall struct {
	KBID   string
	Query  string
	Params []any
}

// SemanticSearchCall records a single invocation of SemanticSearch.
type SemanticSearchCall struct {
	KBID        string
	QueryVector []float32
	TopK        int
	Filters     graphstore.SearchFilters
}

// Store is a mock implementation of graphstore.Store.
type Store struct {
	mu sync.Mutex

	// --- Configurable responses ---

	EnsureKBErr error

	MergeNodeResult bool
	MergeNodeErr    error

	MergeEdgeResult bool
	MergeEdgeErr    error

	SearchGraphResult graphstore.QueryResult
	SearchGraphErr    error

	SemanticSearchResult []graphstore.ScoredNode
	SemanticSearchErr    error

	CountsResult graphstore.KBCounts
	CountsErr    error

	PingErr error

	// --- Call records ---

	EnsureKBCalls      []string
	MergeNodeCalls     []MergeNodeCall
	MergeEdgeCalls     []MergeEdgeCall
	SearchGraphCalls   []SearchGraphCall
	SemanticSearchCalls []SemanticSearchCall
	CountsCalls        []string
	PingCallCount      int
	CloseCallCount     int
}

// EnsureKB records the call and returns EnsureKBErr.
func (s *Store) EnsureKB(ctx context.Context, kbID string, dimensions int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EnsureKBCalls = append(s.EnsureKBCalls, kbID)
	return s.EnsureKBErr
}

// MergeNode records the call and returns MergeNodeResult, MergeNodeErr.
func (s *Store) MergeNode(ctx context.Context, kbID string, node graphstore.Node) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MergeNodeCalls = append(s.MergeNodeCalls, MergeNodeCall{KBID: kbID, Node: node})
	return s.MergeNodeResult, s.MergeNodeErr
}

// MergeEdge records the call and returns MergeEdgeResult, MergeEdgeErr.
func (s *Store) MergeEdge(ctx context.Context, kbID string, edge graphstore.Edge) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MergeEdgeCalls = append(s.MergeEdgeCalls, MergeEdgeCall{KBID: kbID, Edge: edge})
	return s.MergeEdgeResult, s.MergeEdgeErr
}

// SearchGraph records the call and returns SearchGraphResult, SearchGraphErr.
func (s *Store) SearchGraph(ctx context.Context, kbID string, query string, params []any) (graphstore.QueryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SearchGraphCalls = append(s.SearchGraphCalls, SearchGraphCall{KBID: kbID, Query: query, Params: params})
	return s.SearchGraphResult, s.SearchGraphErr
}

// SemanticSearch records the call and returns SemanticSearchResult, SemanticSearchErr.
func (s *Store) SemanticSearch(ctx context.Context, kbID string, queryVector []float32, topK int, filters graphstore.SearchFilters) ([]graphstore.ScoredNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SemanticSearchCalls = append(s.SemanticSearchCalls, SemanticSearchCall{KBID: kbID, QueryVector: queryVector, TopK: topK, Filters: filters})
	return s.SemanticSearchResult, s.SemanticSearchErr
}

// Counts records the call and returns CountsResult, CountsErr.
func (s *Store) Counts(ctx context.Context, kbID string) (graphstore.KBCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CountsCalls = append(s.CountsCalls, kbID)
	return s.CountsResult, s.CountsErr
}

// Ping records the call and returns PingErr.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PingCallCount++
	return s.PingErr
}

// Close records the call.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
}

// Reset clears all recorded calls. Thread-safe.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EnsureKBCalls = nil
	s.MergeNodeCalls = nil
	s.MergeEdgeCalls = nil
	s.SearchGraphCalls = nil
	s.SemanticSearchCalls = nil
	s.CountsCalls = nil
	s.PingCallCount = 0
	s.CloseCallCount = 0
}

// Ensure Store implements graphstore.Store at compile time.
var _ graphstore.Store = (*Store)(nil)
