package embedpipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/graphkb/internal/resilience"
	"github.com/MrWong99/graphkb/internal/schemadsl"
	"github.com/MrWong99/graphkb/pkg/provider/embeddings/mock"
)

func schemaConfig(strategy string, maxTokens, overlap int) schemadsl.ChunkingConfig {
	return schemadsl.ChunkingConfig{Strategy: strategy, MaxTokens: maxTokens, Overlap: overlap}
}

func fastPipeline(p *mock.Provider) *Pipeline {
	return New(p,
		WithRetry(resilience.RetryConfig{MaxAttempts: 2, Base: time.Millisecond, Cap: time.Millisecond}),
		WithCircuitBreaker(resilience.CircuitBreakerConfig{Name: "test", MaxFailures: 100}),
	)
}

func TestEmbedNode_Success(t *testing.T) {
	p := &mock.Provider{EmbedResult: []float32{0.1, 0.2}, DimensionsValue: 2}
	pipeline := fastPipeline(p)

	vec, degraded := pipeline.EmbedNode(context.Background(), "Document", "d1", "hello world")
	if degraded != nil {
		t.Fatalf("unexpected degradation: %v", degraded)
	}
	if len(vec) != 2 {
		t.Fatalf("got vector of length %d, want 2", len(vec))
	}
}

func TestEmbedNode_FallsBackDeterministically(t *testing.T) {
	p := &mock.Provider{EmbedErr: errors.New("provider down"), DimensionsValue: 4}
	pipeline := fastPipeline(p)

	vec1, degraded1 := pipeline.EmbedNode(context.Background(), "Document", "d1", "hello world")
	if degraded1 == nil {
		t.Fatalf("expected *EmbedDegraded on persistent failure")
	}
	if degraded1.Label != "Document" || degraded1.Key != "d1" {
		t.Errorf("EmbedDegraded = %+v, want Label=Document Key=d1", degraded1)
	}
	if len(vec1) != 4 {
		t.Fatalf("fallback vector length = %d, want 4", len(vec1))
	}

	vec2, _ := pipeline.EmbedNode(context.Background(), "Document", "d1", "hello world")
	for i := range vec1 {
		if vec1[i] != vec2[i] {
			t.Fatalf("fallback vector is not deterministic: %v vs %v", vec1, vec2)
		}
	}
}

func TestEmbedBatch_OneUndegradedResultPerInput(t *testing.T) {
	p := &mock.Provider{EmbedResult: []float32{1}, DimensionsValue: 1}
	pipeline := fastPipeline(p)
	pipeline.poolMax = 2

	labels := []string{"A", "B", "C", "D"}
	keys := []string{"1", "2", "3", "4"}
	texts := []string{"a", "b", "c", "d"}

	results, degraded := pipeline.EmbedBatch(context.Background(), labels, keys, texts)
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}
	for i, d := range degraded {
		if d != nil {
			t.Errorf("index %d unexpectedly degraded: %v", i, d)
		}
	}
}

func TestChunk_ParagraphStrategy(t *testing.T) {
	text := "First paragraph here.\n\nSecond paragraph here."
	chunks := Chunk(text, schemaConfig("paragraph", 500, 0))
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %v", len(chunks), chunks)
	}
}

func TestChunk_PacksToMaxTokensWithOverlap(t *testing.T) {
	text := "one two three four five six seven eight nine ten"
	chunks := Chunk(text, schemaConfig("sentence", 4, 2))
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks packing 10 words at max_tokens=4, got %v", chunks)
	}
}

func TestChunk_EmptyTextProducesNoChunks(t *testing.T) {
	if chunks := Chunk("   ", schemaConfig("paragraph", 500, 0)); len(chunks) != 0 {
		t.Fatalf("expected no chunks for blank text, got %v", chunks)
	}
}
