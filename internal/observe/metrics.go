// Package observe provides application-wide observability primitives for
// the ingestion orchestrator: OpenTelemetry metrics, distributed tracing,
// structured logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all orchestrator
// metrics.
const meterName = "github.com/MrWong99/graphkb"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// EmbedDuration tracks embedding-provider call latency.
	EmbedDuration metric.Float64Histogram

	// MergeDuration tracks graph-store merge (node+edge upsert) latency.
	MergeDuration metric.Float64Histogram

	// DocumentDuration tracks end-to-end per-document processing latency
	// (map + embed + merge).
	DocumentDuration metric.Float64Histogram

	// RunDuration tracks a full ingestion run's wall-clock duration.
	RunDuration metric.Float64Histogram

	// ConnectorPullDuration tracks connector client pull latency.
	ConnectorPullDuration metric.Float64Histogram

	// --- Counters ---

	// DocumentsProcessed counts documents successfully mapped, embedded, and
	// merged. Use with attribute: attribute.String("kb_id", ...).
	DocumentsProcessed metric.Int64Counter

	// NodesMerged counts node merges. Use with attributes:
	//   attribute.String("kb_id", ...), attribute.String("result", "created"|"updated")
	NodesMerged metric.Int64Counter

	// RelationshipsMerged counts edge merges. Use with attributes:
	//   attribute.String("kb_id", ...), attribute.String("result", "created"|"updated")
	RelationshipsMerged metric.Int64Counter

	// --- Error counters ---

	// DocumentErrors counts per-document failures by kind. Use with
	// attributes: attribute.String("kb_id", ...), attribute.String("kind", ...)
	DocumentErrors metric.Int64Counter

	// EmbedDegradations counts documents that fell back to the deterministic
	// placeholder vector.
	EmbedDegradations metric.Int64Counter

	// --- Gauges ---

	// ActiveRuns tracks the number of currently running ingestion runs.
	ActiveRuns metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) covering
// sub-100ms embedding calls through multi-second document/run processing.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.EmbedDuration, err = m.Float64Histogram("graphkb.embed.duration",
		metric.WithDescription("Latency of embedding provider calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MergeDuration, err = m.Float64Histogram("graphkb.merge.duration",
		metric.WithDescription("Latency of graph store node/edge merges."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DocumentDuration, err = m.Float64Histogram("graphkb.document.duration",
		metric.WithDescription("End-to-end per-document processing latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RunDuration, err = m.Float64Histogram("graphkb.run.duration",
		metric.WithDescription("Wall-clock duration of a full ingestion run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ConnectorPullDuration, err = m.Float64Histogram("graphkb.connector.pull.duration",
		metric.WithDescription("Latency of connector pull requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.DocumentsProcessed, err = m.Int64Counter("graphkb.documents.processed",
		metric.WithDescription("Total documents successfully mapped, embedded, and merged."),
	); err != nil {
		return nil, err
	}
	if met.NodesMerged, err = m.Int64Counter("graphkb.nodes.merged",
		metric.WithDescription("Total node merges by result (created/updated)."),
	); err != nil {
		return nil, err
	}
	if met.RelationshipsMerged, err = m.Int64Counter("graphkb.relationships.merged",
		metric.WithDescription("Total relationship merges by result (created/updated)."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.DocumentErrors, err = m.Int64Counter("graphkb.document.errors",
		metric.WithDescription("Total per-document failures by kind."),
	); err != nil {
		return nil, err
	}
	if met.EmbedDegradations, err = m.Int64Counter("graphkb.embed.degradations",
		metric.WithDescription("Total documents that fell back to the deterministic placeholder vector."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveRuns, err = m.Int64UpDownCounter("graphkb.active_runs",
		metric.WithDescription("Number of currently running ingestion runs."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("graphkb.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordDocumentProcessed is a convenience method that records a processed
// document counter increment for kbID.
func (m *Metrics) RecordDocumentProcessed(ctx context.Context, kbID string) {
	m.DocumentsProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("kb_id", kbID)))
}

// RecordNodeMerge is a convenience method that records a node merge, scoped
// to kbID and the merge result ("created" or "updated").
func (m *Metrics) RecordNodeMerge(ctx context.Context, kbID, result string) {
	m.NodesMerged.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kb_id", kbID),
		attribute.String("result", result),
	))
}

// RecordRelationshipMerge is a convenience method that records an edge
// merge, scoped to kbID and the merge result ("created" or "updated").
func (m *Metrics) RecordRelationshipMerge(ctx context.Context, kbID, result string) {
	m.RelationshipsMerged.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kb_id", kbID),
		attribute.String("result", result),
	))
}

// RecordDocumentError is a convenience method that records a per-document
// failure counter increment, scoped to kbID and the error kind.
func (m *Metrics) RecordDocumentError(ctx context.Context, kbID, kind string) {
	m.DocumentErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kb_id", kbID),
		attribute.String("kind", kind),
	))
}
