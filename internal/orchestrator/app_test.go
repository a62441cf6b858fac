package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/graphkb/internal/config"
	"github.com/MrWong99/graphkb/internal/connector"
	"github.com/MrWong99/graphkb/internal/embedpipeline"
	"github.com/MrWong99/graphkb/pkg/graphstore"
	gsmock "github.com/MrWong99/graphkb/pkg/graphstore/mock"
	embmock "github.com/MrWong99/graphkb/pkg/provider/embeddings/mock"
)

const testSchemaYAML = `
embedding:
  provider: "ollama:nomic-embed-text"
  chunking:
    strategy: by_fields
    max_tokens: 500
    overlap: 0
    fields: ["title"]
nodes:
  - label: Document
    key: doc_id
    props: [doc_id, title]
  - label: Person
    key: person_id
    props: [person_id, name]
relationships:
  - type: AUTHORED_BY
    from: Document
    to: Person
mappings:
  sources:
    - source_id: docs
      document_type: article
      extract:
        node: Document
        assign:
          doc_id: "$.id"
          title: "$.title"
      edges:
        - type: AUTHORED_BY
          from:
            node: Document
            key: "$.id"
          to:
            node: Person
            key: "$.author_id"
            props:
              name: "$.author_name"
`

const invalidSchemaYAML = `
embedding:
  provider: "not-a-valid-provider"
nodes: []
`

// testApp builds an App wired to mock doubles, skipping the config registry
// and PostgreSQL/provider construction entirely.
func testApp(t *testing.T, store graphstore.Store, provider *embmock.Provider) *App {
	t.Helper()
	cfg := &config.Config{}
	pipeline := embedpipeline.New(provider)
	a, err := New(context.Background(), cfg, nil,
		WithGraphStore(store),
		WithEmbeddingProvider(provider),
		WithEmbedPipeline(pipeline),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNew_WithInjectedDoubles(t *testing.T) {
	store := &gsmock.Store{}
	provider := &embmock.Provider{DimensionsValue: 4}
	a := testApp(t, store, provider)

	if a.Store() != store {
		t.Fatalf("Store() did not return the injected store")
	}
	if a.RunManager() == nil {
		t.Fatalf("RunManager() is nil")
	}
}

func TestRegisterSchema_Success(t *testing.T) {
	store := &gsmock.Store{}
	provider := &embmock.Provider{DimensionsValue: 4}
	a := testApp(t, store, provider)

	res, err := a.RegisterSchema(context.Background(), "kb1", []byte(testSchemaYAML))
	if err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}
	if res.SchemaVersion != 1 {
		t.Errorf("SchemaVersion = %d, want 1", res.SchemaVersion)
	}
	if res.NodesCount != 2 {
		t.Errorf("NodesCount = %d, want 2", res.NodesCount)
	}
	if res.RelsCount != 1 {
		t.Errorf("RelsCount = %d, want 1", res.RelsCount)
	}
	if res.SourcesCount != 1 {
		t.Errorf("SourcesCount = %d, want 1", res.SourcesCount)
	}
	if len(store.EnsureKBCalls) != 1 || store.EnsureKBCalls[0] != "kb1" {
		t.Errorf("EnsureKBCalls = %v, want [kb1]", store.EnsureKBCalls)
	}

	// Registering again bumps the version.
	res2, err := a.RegisterSchema(context.Background(), "kb1", []byte(testSchemaYAML))
	if err != nil {
		t.Fatalf("RegisterSchema (second): %v", err)
	}
	if res2.SchemaVersion != 2 {
		t.Errorf("SchemaVersion (second) = %d, want 2", res2.SchemaVersion)
	}
}

func TestRegisterSchema_Invalid(t *testing.T) {
	store := &gsmock.Store{}
	provider := &embmock.Provider{DimensionsValue: 4}
	a := testApp(t, store, provider)

	_, err := a.RegisterSchema(context.Background(), "kb1", []byte(invalidSchemaYAML))
	if err == nil {
		t.Fatalf("expected an error for an invalid schema")
	}
	if len(store.EnsureKBCalls) != 0 {
		t.Errorf("EnsureKB should not be called when schema validation fails")
	}
}

func TestAddSource_UnknownKB(t *testing.T) {
	store := &gsmock.Store{}
	provider := &embmock.Provider{DimensionsValue: 4}
	a := testApp(t, store, provider)

	_, err := a.AddSource(context.Background(), "nope", "s1", "http://example.invalid", "", "docs")
	var unknownKB *UnknownKB
	if !errors.As(err, &unknownKB) {
		t.Fatalf("expected *UnknownKB, got %v (%T)", err, err)
	}
}

func TestAddSource_UnknownMapping(t *testing.T) {
	store := &gsmock.Store{}
	provider := &embmock.Provider{DimensionsValue: 4}
	a := testApp(t, store, provider)

	if _, err := a.RegisterSchema(context.Background(), "kb1", []byte(testSchemaYAML)); err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}

	_, err := a.AddSource(context.Background(), "kb1", "s1", "http://example.invalid", "", "nonexistent")
	var unknownMapping *UnknownMapping
	if !errors.As(err, &unknownMapping) {
		t.Fatalf("expected *UnknownMapping, got %v (%T)", err, err)
	}
}

func TestAddSource_Success(t *testing.T) {
	store := &gsmock.Store{}
	provider := &embmock.Provider{DimensionsValue: 4}
	a := testApp(t, store, provider)

	if _, err := a.RegisterSchema(context.Background(), "kb1", []byte(testSchemaYAML)); err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}

	res, err := a.AddSource(context.Background(), "kb1", "s1", "http://example.invalid", "tok-123", "docs")
	if err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	if !res.OK {
		t.Errorf("AddSource.OK = false, want true")
	}

	entry, ok := a.sources[sourceKey("kb1", "s1")]
	if !ok {
		t.Fatalf("source entry not recorded")
	}
	if entry.Cred.BearerToken != "tok-123" {
		t.Errorf("Cred.BearerToken = %q, want tok-123", entry.Cred.BearerToken)
	}
}

// pullServer serves one page of documents from /pull.
func pullServer(t *testing.T, docs []json.RawMessage) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(connector.PullResult{Documents: docs})
	}))
}

func rawDoc(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal doc: %v", err)
	}
	return b
}

func TestIngest_Success(t *testing.T) {
	store := &gsmock.Store{MergeNodeResult: true, MergeEdgeResult: true}
	provider := &embmock.Provider{DimensionsValue: 4, EmbedResult: []float32{0.1, 0.2, 0.3, 0.4}}
	a := testApp(t, store, provider)

	if _, err := a.RegisterSchema(context.Background(), "kb1", []byte(testSchemaYAML)); err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}

	docs := []json.RawMessage{
		rawDoc(t, map[string]any{"id": "d1", "title": "First Article", "author_id": "p1", "author_name": "Ada"}),
		rawDoc(t, map[string]any{"id": "d2", "title": "Second Article", "author_id": "p2", "author_name": "Grace"}),
	}
	srv := pullServer(t, docs)
	defer srv.Close()

	if _, err := a.AddSource(context.Background(), "kb1", "s1", srv.URL, "", "docs"); err != nil {
		t.Fatalf("AddSource: %v", err)
	}

	res, err := a.Ingest(context.Background(), "kb1", "s1", "")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Processed != 2 {
		t.Errorf("Processed = %d, want 2", res.Processed)
	}
	if res.CreatedNodes != 4 {
		t.Errorf("CreatedNodes = %d, want 4 (2 Document + 2 Person)", res.CreatedNodes)
	}
	if res.CreatedRels != 2 {
		t.Errorf("CreatedRels = %d, want 2", res.CreatedRels)
	}
	if len(res.Errors) != 0 {
		t.Errorf("Errors = %v, want none", res.Errors)
	}
	if len(store.MergeNodeCalls) != 4 {
		t.Errorf("MergeNodeCalls = %d, want 4", len(store.MergeNodeCalls))
	}
}

func TestIngest_UnknownSource(t *testing.T) {
	store := &gsmock.Store{}
	provider := &embmock.Provider{DimensionsValue: 4}
	a := testApp(t, store, provider)

	if _, err := a.RegisterSchema(context.Background(), "kb1", []byte(testSchemaYAML)); err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}

	_, err := a.Ingest(context.Background(), "kb1", "missing-source", "")
	var unknownSource *UnknownSource
	if !errors.As(err, &unknownSource) {
		t.Fatalf("expected *UnknownSource, got %v (%T)", err, err)
	}
}

func TestIngest_Conflict(t *testing.T) {
	store := &gsmock.Store{MergeNodeResult: true, MergeEdgeResult: true}
	provider := &embmock.Provider{DimensionsValue: 4, EmbedResult: []float32{0.1, 0.2, 0.3, 0.4}}
	a := testApp(t, store, provider)

	if _, err := a.RegisterSchema(context.Background(), "kb1", []byte(testSchemaYAML)); err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}

	if _, err := a.runs.StartRun("kb1", "s1"); err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	if _, err := a.AddSource(context.Background(), "kb1", "s1", "http://example.invalid", "", "docs"); err != nil {
		t.Fatalf("AddSource: %v", err)
	}

	_, err := a.Ingest(context.Background(), "kb1", "s1", "")
	if err == nil {
		t.Fatalf("expected a Conflict error, got nil")
	}
}

func TestIngest_DocumentFailureContinuesRun(t *testing.T) {
	store := &gsmock.Store{MergeNodeResult: true, MergeEdgeResult: true}
	provider := &embmock.Provider{DimensionsValue: 4, EmbedResult: []float32{0.1, 0.2, 0.3, 0.4}}
	a := testApp(t, store, provider)

	if _, err := a.RegisterSchema(context.Background(), "kb1", []byte(testSchemaYAML)); err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}

	docs := []json.RawMessage{
		rawDoc(t, map[string]any{"title": "Missing the id field"}),
		rawDoc(t, map[string]any{"id": "d2", "title": "Valid doc", "author_id": "p2", "author_name": "Grace"}),
	}
	srv := pullServer(t, docs)
	defer srv.Close()

	if _, err := a.AddSource(context.Background(), "kb1", "s1", srv.URL, "", "docs"); err != nil {
		t.Fatalf("AddSource: %v", err)
	}

	res, err := a.Ingest(context.Background(), "kb1", "s1", "")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Processed != 1 {
		t.Errorf("Processed = %d, want 1 (one document should fail mapping)", res.Processed)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("Errors = %v, want exactly 1", res.Errors)
	}
	if res.Errors[0].Kind != "mapping_failed" {
		t.Errorf("Errors[0].Kind = %q, want mapping_failed", res.Errors[0].Kind)
	}
}

func TestIngest_SourceErrorWithZeroProcessed(t *testing.T) {
	store := &gsmock.Store{}
	provider := &embmock.Provider{DimensionsValue: 4}
	a := testApp(t, store, provider)

	if _, err := a.RegisterSchema(context.Background(), "kb1", []byte(testSchemaYAML)); err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request"))
	}))
	defer srv.Close()

	if _, err := a.AddSource(context.Background(), "kb1", "s1", srv.URL, "", "docs"); err != nil {
		t.Fatalf("AddSource: %v", err)
	}

	res, err := a.Ingest(context.Background(), "kb1", "s1", "")
	if err == nil {
		t.Fatalf("expected a SourceError, got nil")
	}
	if res.Processed != 0 {
		t.Errorf("Processed = %d, want 0", res.Processed)
	}
}

func TestSearchGraph(t *testing.T) {
	store := &gsmock.Store{SearchGraphResult: graphstore.QueryResult{
		Rows:  []map[string]any{{"doc_id": "d1"}},
		Count: 1,
	}}
	provider := &embmock.Provider{DimensionsValue: 4}
	a := testApp(t, store, provider)

	if _, err := a.RegisterSchema(context.Background(), "kb1", []byte(testSchemaYAML)); err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}

	res, err := a.SearchGraph(context.Background(), "kb1", "MATCH (d:Document) RETURN d", nil)
	if err != nil {
		t.Fatalf("SearchGraph: %v", err)
	}
	if res.Count != 1 || len(res.Rows) != 1 {
		t.Errorf("SearchGraph result = %+v, want 1 row", res)
	}

	_, err = a.SearchGraph(context.Background(), "no-such-kb", "MATCH (d) RETURN d", nil)
	var unknownKB *UnknownKB
	if !errors.As(err, &unknownKB) {
		t.Fatalf("expected *UnknownKB, got %v (%T)", err, err)
	}
}

func TestSemanticSearch(t *testing.T) {
	store := &gsmock.Store{SemanticSearchResult: []graphstore.ScoredNode{
		{Node: graphstore.Node{Label: "Document", Key: "d1"}, Score: 0.92},
	}}
	provider := &embmock.Provider{DimensionsValue: 4, EmbedResult: []float32{0.1, 0.2, 0.3, 0.4}}
	a := testApp(t, store, provider)

	if _, err := a.RegisterSchema(context.Background(), "kb1", []byte(testSchemaYAML)); err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}

	res, err := a.SemanticSearch(context.Background(), "kb1", "first article", 5, graphstore.SearchFilters{})
	if err != nil {
		t.Fatalf("SemanticSearch: %v", err)
	}
	if len(res) != 1 || res[0].Key != "d1" {
		t.Errorf("SemanticSearch result = %+v, want one result for d1", res)
	}
	if len(store.SemanticSearchCalls) != 1 || store.SemanticSearchCalls[0].TopK != 5 {
		t.Errorf("SemanticSearchCalls = %+v", store.SemanticSearchCalls)
	}

	_, err = a.SemanticSearch(context.Background(), "no-such-kb", "query", 5, graphstore.SearchFilters{})
	var unknownKB *UnknownKB
	if !errors.As(err, &unknownKB) {
		t.Fatalf("expected *UnknownKB, got %v (%T)", err, err)
	}
}

func TestSyncStatus(t *testing.T) {
	store := &gsmock.Store{CountsResult: graphstore.KBCounts{TotalNodes: 10, TotalRelationships: 4}}
	provider := &embmock.Provider{DimensionsValue: 4}
	a := testApp(t, store, provider)

	if _, err := a.RegisterSchema(context.Background(), "kb1", []byte(testSchemaYAML)); err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}

	status, err := a.SyncStatus(context.Background(), "kb1")
	if err != nil {
		t.Fatalf("SyncStatus: %v", err)
	}
	if status.TotalNodes != 10 || status.TotalRelationships != 4 {
		t.Errorf("SyncStatus = %+v, want TotalNodes=10 TotalRelationships=4", status)
	}

	_, err = a.SyncStatus(context.Background(), "no-such-kb")
	var unknownKB *UnknownKB
	if !errors.As(err, &unknownKB) {
		t.Fatalf("expected *UnknownKB, got %v (%T)", err, err)
	}
}

func TestShutdown_ClosesStoreAndIsIdempotent(t *testing.T) {
	store := &gsmock.Store{}
	provider := &embmock.Provider{DimensionsValue: 4}
	a := testApp(t, store, provider)

	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown (second call): %v", err)
	}
	if store.CloseCallCount != 1 {
		t.Errorf("CloseCallCount = %d, want 1 (Shutdown must be idempotent)", store.CloseCallCount)
	}
}
