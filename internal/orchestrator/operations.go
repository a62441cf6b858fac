package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/graphkb/internal/connector"
	"github.com/MrWong99/graphkb/internal/mapping"
	"github.com/MrWong99/graphkb/internal/runmanager"
	"github.com/MrWong99/graphkb/internal/schemadsl"
	"github.com/MrWong99/graphkb/pkg/graphstore"
)

// RegisterSchema parses, validates, and stores schemaYAML as kbID's current
// schema, bumping its version. EnsureKB is called against the graph store
// with the app's configured embedding dimension — since this process runs a
// single embedding provider for its whole lifetime, every KB this instance
// ever registers a schema for shares that one dimension; [graphstore.Store]
// itself rejects a later mismatch for an existing KB (see DESIGN.md's
// resolution of the embedding-dimension open question).
func (a *App) RegisterSchema(ctx context.Context, kbID string, schemaYAML []byte) (RegisterSchemaResult, error) {
	schema, _, err := schemadsl.Parse(schemaYAML)
	if err != nil {
		return RegisterSchemaResult{}, err
	}

	a.mu.Lock()
	version := 1
	if prev, ok := a.schemas[kbID]; ok {
		version = prev.SchemaVersion + 1
	}
	schema.SchemaVersion = version
	schema.UpdatedAt = time.Now()
	a.schemas[kbID] = schema
	a.mu.Unlock()

	if err := a.store.EnsureKB(ctx, kbID, a.embedProvider.Dimensions()); err != nil {
		return RegisterSchemaResult{}, fmt.Errorf("orchestrator: ensure kb %q: %w", kbID, err)
	}

	return RegisterSchemaResult{
		KBID:          kbID,
		SchemaVersion: version,
		NodesCount:    len(schema.Nodes),
		RelsCount:     len(schema.Relationships),
		SourcesCount:  len(schema.Mappings.Sources),
	}, nil
}

// AddSource registers a connector endpoint for kbID under sourceID, bound to
// the schema mapping named mappingName (matched against
// [schemadsl.SourceMapping.SourceID] in kbID's current schema).
//
// authRef is this orchestrator's only auth/RBAC hook point (spec §1 scopes
// credential resolution itself to the transport shell); it is carried
// verbatim as a bearer token, the simplest opaque-credential binding C3's
// contract allows.
func (a *App) AddSource(ctx context.Context, kbID, sourceID, connectorURL, authRef, mappingName string) (AddSourceResult, error) {
	a.mu.RLock()
	schema, ok := a.schemas[kbID]
	a.mu.RUnlock()
	if !ok {
		return AddSourceResult{}, &UnknownKB{KBID: kbID}
	}

	var m schemadsl.SourceMapping
	found := false
	for _, sm := range schema.Mappings.Sources {
		if sm.SourceID == mappingName {
			m = sm
			found = true
			break
		}
	}
	if !found {
		return AddSourceResult{}, &UnknownMapping{KBID: kbID, MappingName: mappingName}
	}

	entry := sourceEntry{ConnectorURL: connectorURL, Mapping: m}
	if authRef != "" {
		entry.Cred = connector.Credential{BearerToken: authRef}
	}

	a.mu.Lock()
	a.sources[sourceKey(kbID, sourceID)] = entry
	a.mu.Unlock()

	return AddSourceResult{OK: true}, nil
}

// Ingest pulls documents for (kbID, sourceID) since the given cursor (empty
// for "all"), maps each through its bound schema mapping, embeds and merges
// the result into the graph, and returns the run's final tally. Pagination
// follows the connector's next_since cursor until it is empty.
//
// Per-document failures (MappingFailed, StoreError) are recorded on the run
// and the document is skipped; the run continues. A SourceError from the
// connector fails the run outright only if zero documents were processed —
// both per spec §7's propagation policy.
func (a *App) Ingest(ctx context.Context, kbID, sourceID, since string) (IngestResult, error) {
	a.mu.RLock()
	schema, schemaOK := a.schemas[kbID]
	src, srcOK := a.sources[sourceKey(kbID, sourceID)]
	a.mu.RUnlock()
	if !schemaOK || !srcOK {
		return IngestResult{}, &UnknownSource{KBID: kbID, SourceID: sourceID}
	}

	run, err := a.runs.StartRun(kbID, sourceID)
	if err != nil {
		return IngestResult{}, err
	}
	a.metrics.ActiveRuns.Add(ctx, 1)
	defer a.metrics.ActiveRuns.Add(ctx, -1)

	cursor := since
	var sourceErr error
	for {
		page, pullErr := a.connector.Pull(ctx, src.ConnectorURL, cursor, src.Cred)
		if pullErr != nil {
			sourceErr = pullErr
			_ = a.runs.AddError(run.RunID, "source_error", pullErr.Error())
			break
		}

		for _, raw := range page.Documents {
			a.ingestDocument(ctx, kbID, run.RunID, raw, schema, src.Mapping)
		}

		if page.NextSince == "" {
			break
		}
		cursor = page.NextSince
	}

	_ = a.runs.Finish(run.RunID)
	final, _ := a.runs.Get(run.RunID)

	result := IngestResult{
		RunID:        final.RunID,
		Processed:    final.DocumentsProcessed,
		CreatedNodes: final.NodesCreated,
		CreatedRels:  final.RelationshipsCreated,
		Errors:       final.Errors,
	}

	if sourceErr != nil && final.DocumentsProcessed == 0 {
		return result, sourceErr
	}
	return result, nil
}

// ingestDocument maps, embeds, and merges one raw document, recording any
// failure as a run error and skipping the document — never aborting the
// run.
func (a *App) ingestDocument(ctx context.Context, kbID, runID string, raw json.RawMessage, schema *schemadsl.Schema, m schemadsl.SourceMapping) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeouts.Document())
	defer cancel()

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		_ = a.runs.AddError(runID, "decode_error", err.Error())
		a.metrics.RecordDocumentError(ctx, kbID, "decode_error")
		return
	}

	result, err := mapping.Apply(doc, schema, m)
	if err != nil {
		var mf *mapping.MappingFailed
		if errors.As(err, &mf) {
			_ = a.runs.AddError(runID, "mapping_failed", mf.Error())
			a.metrics.RecordDocumentError(ctx, kbID, "mapping_failed")
			return
		}
		_ = a.runs.AddError(runID, "mapping_error", err.Error())
		a.metrics.RecordDocumentError(ctx, kbID, "mapping_error")
		return
	}

	delta := runmanager.Counters{}

	for i, node := range result.Nodes {
		gsNode := graphstore.Node{
			Label:      node.Label,
			Key:        node.Key,
			Properties: node.Properties,
			Provenance: graphstore.Provenance{KBID: kbID, SourceID: m.SourceID, RunID: runID, UpdatedAt: time.Now()},
		}
		if i == 0 {
			vec, degraded := a.embedPrimaryNode(ctx, node, schema.Embedding.Chunking)
			gsNode.Embedding = vec
			if degraded != nil {
				_ = a.runs.AddError(runID, "embed_degraded", degraded.Error())
				a.metrics.EmbedDegradations.Add(ctx, 1)
			}
		}

		created, err := a.store.MergeNode(ctx, kbID, gsNode)
		if err != nil {
			_ = a.runs.AddError(runID, "store_error", err.Error())
			a.metrics.RecordDocumentError(ctx, kbID, "store_error")
			return
		}
		if created {
			delta.NodesCreated++
		} else {
			delta.NodesUpdated++
		}
		a.metrics.RecordNodeMerge(ctx, kbID, mergeResultLabel(created))
	}

	for _, edge := range result.Edges {
		gsEdge := graphstore.Edge{
			Type:       edge.Type,
			FromLabel:  edge.FromLabel,
			FromKey:    edge.FromKey,
			ToLabel:    edge.ToLabel,
			ToKey:      edge.ToKey,
			Properties: edge.Properties,
			Provenance: graphstore.Provenance{KBID: kbID, SourceID: m.SourceID, RunID: runID, UpdatedAt: time.Now()},
		}
		created, err := a.store.MergeEdge(ctx, kbID, gsEdge)
		if err != nil {
			_ = a.runs.AddError(runID, "store_error", err.Error())
			a.metrics.RecordDocumentError(ctx, kbID, "store_error")
			return
		}
		if created {
			delta.RelationshipsCreated++
		} else {
			delta.RelationshipsUpdated++
		}
		a.metrics.RecordRelationshipMerge(ctx, kbID, mergeResultLabel(created))
	}

	delta.DocumentsProcessed = 1
	_ = a.runs.UpdateStats(runID, delta)
	a.metrics.RecordDocumentProcessed(ctx, kbID)
}

func mergeResultLabel(created bool) string {
	if created {
		return "created"
	}
	return "updated"
}

// SearchGraph executes a parameterized, read-only query against kbID's
// graph. Write-intent queries are rejected by the store itself with
// [graphstore.WriteForbidden].
func (a *App) SearchGraph(ctx context.Context, kbID, query string, params []any) (SearchGraphResult, error) {
	if !a.kbExists(kbID) {
		return SearchGraphResult{}, &UnknownKB{KBID: kbID}
	}

	res, err := a.store.SearchGraph(ctx, kbID, query, params)
	if err != nil {
		return SearchGraphResult{}, err
	}
	return SearchGraphResult{Rows: res.Rows, Count: res.Count}, nil
}

// SemanticSearch embeds text and returns the topK nodes in kbID closest to
// it by cosine similarity, after applying filters.
func (a *App) SemanticSearch(ctx context.Context, kbID, text string, topK int, filters graphstore.SearchFilters) ([]SemanticSearchResult, error) {
	if !a.kbExists(kbID) {
		return nil, &UnknownKB{KBID: kbID}
	}

	vec, degraded := a.embed.EmbedNode(ctx, "query", "ad-hoc", text)
	if degraded != nil {
		a.metrics.EmbedDegradations.Add(ctx, 1)
	}

	scored, err := a.store.SemanticSearch(ctx, kbID, vec, topK, filters)
	if err != nil {
		return nil, err
	}

	out := make([]SemanticSearchResult, len(scored))
	for i, sn := range scored {
		out[i] = SemanticSearchResult{
			Label:      sn.Node.Label,
			Key:        sn.Node.Key,
			Properties: sn.Node.Properties,
			Score:      sn.Score,
		}
	}
	return out, nil
}

// SyncStatus reports kbID's aggregate health, combining the run manager's
// derived status with the graph store's current node/relationship counts.
func (a *App) SyncStatus(ctx context.Context, kbID string) (KBStatus, error) {
	if !a.kbExists(kbID) {
		return KBStatus{}, &UnknownKB{KBID: kbID}
	}

	status := a.runs.Status(kbID)
	counts, err := a.store.Counts(ctx, kbID)
	if err != nil {
		return KBStatus{}, err
	}

	return KBStatus{
		Status:             status,
		TotalNodes:         counts.TotalNodes,
		TotalRelationships: counts.TotalRelationships,
	}, nil
}

func (a *App) kbExists(kbID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.schemas[kbID]
	return ok
}
