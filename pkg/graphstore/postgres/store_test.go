package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/MrWong99/graphkb/pkg/graphstore"
)

// testDSN returns the PostgreSQL DSN to use for integration tests, skipping
// the test when GRAPHKB_TEST_POSTGRES_DSN is not set. These tests require a
// live PostgreSQL instance with the pgvector extension available.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("GRAPHKB_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GRAPHKB_TEST_POSTGRES_DSN not set, skipping postgres integration test")
	}
	return dsn
}

// newTestStore creates a Store against testDSN and drops its tables on
// cleanup so each test starts from an empty schema.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := NewStore(ctx, testDSN(t))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() {
		dropSchema(t, store)
		store.Close()
	})
	return store
}

func dropSchema(t *testing.T, store *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, stmt := range []string{
		`DROP TABLE IF EXISTS edges CASCADE`,
		`DROP TABLE IF EXISTS nodes CASCADE`,
		`DROP TABLE IF EXISTS kb_dimensions CASCADE`,
	} {
		if _, err := store.pool.Exec(ctx, stmt); err != nil {
			t.Logf("drop schema: %v", err)
		}
	}
}

func TestMergeNode_CreateThenUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.EnsureKB(ctx, "demo", 3); err != nil {
		t.Fatalf("EnsureKB: %v", err)
	}

	node := graphstore.Node{
		Label:      "Document",
		Key:        "d1",
		Properties: map[string]any{"title": "T1"},
		Embedding:  []float32{0.1, 0.2, 0.3},
		Provenance: graphstore.Provenance{SourceID: "src1", RunID: "run1"},
	}

	created, err := store.MergeNode(ctx, "demo", node)
	if err != nil {
		t.Fatalf("MergeNode (create): %v", err)
	}
	if !created {
		t.Fatalf("expected created=true on first merge")
	}

	node.Properties["title"] = "T1-updated"
	node.RunID = "run2"
	created, err = store.MergeNode(ctx, "demo", node)
	if err != nil {
		t.Fatalf("MergeNode (update): %v", err)
	}
	if created {
		t.Fatalf("expected created=false on second merge of same key")
	}

	counts, err := store.Counts(ctx, "demo")
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.TotalNodes != 1 {
		t.Fatalf("expected 1 node after re-merge, got %d", counts.TotalNodes)
	}
}

func TestMergeNode_LabelMismatchRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.EnsureKB(ctx, "demo", 3); err != nil {
		t.Fatalf("EnsureKB: %v", err)
	}

	if _, err := store.MergeNode(ctx, "demo", graphstore.Node{Label: "Document", Key: "k1"}); err != nil {
		t.Fatalf("MergeNode: %v", err)
	}

	_, err := store.MergeNode(ctx, "demo", graphstore.Node{Label: "Person", Key: "k1"})
	var storeErr *graphstore.StoreError
	if err == nil {
		t.Fatalf("expected StoreError on label mismatch, got nil")
	}
	if !isStoreError(err, &storeErr) {
		t.Fatalf("expected *graphstore.StoreError, got %T: %v", err, err)
	}
}

func TestMergeEdge_RequiresExistingEndpoints(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.EnsureKB(ctx, "demo", 3); err != nil {
		t.Fatalf("EnsureKB: %v", err)
	}

	edge := graphstore.Edge{Type: "AUTHORED_BY", FromLabel: "Document", FromKey: "missing", ToLabel: "Person", ToKey: "also-missing"}
	if _, err := store.MergeEdge(ctx, "demo", edge); err == nil {
		t.Fatalf("expected error merging edge with nonexistent endpoints")
	}
}

func TestSearchGraph_RejectsWriteClauses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.EnsureKB(ctx, "demo", 3); err != nil {
		t.Fatalf("EnsureKB: %v", err)
	}

	_, err := store.SearchGraph(ctx, "demo", "DELETE FROM nodes WHERE kb_id = $1", nil)
	var forbidden *graphstore.WriteForbidden
	if !isWriteForbidden(err, &forbidden) {
		t.Fatalf("expected WriteForbidden, got %v", err)
	}
}

func isStoreError(err error, target **graphstore.StoreError) bool {
	se, ok := err.(*graphstore.StoreError)
	if ok {
		*target = se
	}
	return ok
}

func isWriteForbidden(err error, target **graphstore.WriteForbidden) bool {
	wf, ok := err.(*graphstore.WriteForbidden)
	if ok {
		*target = wf
	}
	return ok
}
