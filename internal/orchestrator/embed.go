package orchestrator

import (
	"context"
	"sort"
	"strings"

	"github.com/MrWong99/graphkb/internal/embedpipeline"
	"github.com/MrWong99/graphkb/internal/mapping"
	"github.com/MrWong99/graphkb/internal/schemadsl"
)

// embeddableText assembles the text a node's embedding is computed from.
// When the schema's chunking config names explicit Fields, only those
// properties are used, in declared order; otherwise every string-valued
// property is used, in sorted key order for determinism (testable property 3
// requires mapping-derived output to be reproducible, and an embedding
// derived from it must be too).
func embeddableText(node mapping.Node, cfg schemadsl.ChunkingConfig) string {
	var parts []string
	if len(cfg.Fields) > 0 {
		for _, f := range cfg.Fields {
			if s, ok := node.Properties[f].(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n\n")
	}

	keys := make([]string, 0, len(node.Properties))
	for k := range node.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s, ok := node.Properties[k].(string); ok && s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

// embedPrimaryNode computes a single representative vector for the primary
// node extracted from a document. The node's text is split per the schema's
// chunking strategy; a single chunk is embedded directly, multiple chunks
// are embedded independently and mean-pooled into one vector — the
// conventional way to collapse multi-chunk text into the one embedding slot
// [graphstore.Node] has room for. Returns a nil vector (not an error) when
// there is no embeddable text, e.g. a node with only numeric properties.
func (a *App) embedPrimaryNode(ctx context.Context, node mapping.Node, cfg schemadsl.ChunkingConfig) ([]float32, *embedpipeline.EmbedDegraded) {
	text := embeddableText(node, cfg)
	if text == "" {
		return nil, nil
	}

	chunks := embedpipeline.Chunk(text, cfg)
	if len(chunks) == 0 {
		return nil, nil
	}
	if len(chunks) == 1 {
		return a.embed.EmbedNode(ctx, node.Label, node.Key, chunks[0])
	}

	labels := make([]string, len(chunks))
	keys := make([]string, len(chunks))
	for i := range chunks {
		labels[i] = node.Label
		keys[i] = node.Key
	}
	vectors, degradations := a.embed.EmbedBatch(ctx, labels, keys, chunks)

	var degraded *embedpipeline.EmbedDegraded
	for _, d := range degradations {
		if d != nil {
			degraded = d
			break
		}
	}
	return meanPool(vectors), degraded
}

// meanPool averages a set of equal-length vectors into one. Returns nil for
// an empty input.
func meanPool(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	out := make([]float32, dim)
	n := float32(0)
	for _, v := range vectors {
		if len(v) != dim {
			continue
		}
		n++
		for i, f := range v {
			out[i] += f
		}
	}
	if n == 0 {
		return nil
	}
	for i := range out {
		out[i] /= n
	}
	return out
}
