// Package orchestrator wires the ingestion components — schema validation,
// mapping, connector pulls, embedding, graph merge, and run tracking — into
// the six transport-agnostic public operations a caller invokes: RegisterSchema,
// AddSource, Ingest, SearchGraph, SemanticSearch, and SyncStatus.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Shutdown tears them down in order. For testing, inject mock
// implementations via functional options (WithGraphStore, WithConnectorClient,
// etc.). When an option is not provided, New creates a real implementation
// from config.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/graphkb/internal/config"
	"github.com/MrWong99/graphkb/internal/connector"
	"github.com/MrWong99/graphkb/internal/embedpipeline"
	"github.com/MrWong99/graphkb/internal/observe"
	"github.com/MrWong99/graphkb/internal/runmanager"
	"github.com/MrWong99/graphkb/internal/schemadsl"
	"github.com/MrWong99/graphkb/pkg/graphstore"
	"github.com/MrWong99/graphkb/pkg/graphstore/postgres"
	"github.com/MrWong99/graphkb/pkg/provider/embeddings"
)

// sourceEntry is one add_source registration: the connector coordinates plus
// a snapshot of the schema mapping it points into.
type sourceEntry struct {
	ConnectorURL string
	Cred         connector.Credential
	Mapping      schemadsl.SourceMapping
}

func sourceKey(kbID, sourceID string) string { return kbID + "\x00" + sourceID }

// App owns every ingestion subsystem's lifetime and exposes the public
// operation surface (component C7).
type App struct {
	cfg *config.Config

	store         graphstore.Store
	embedProvider embeddings.Provider
	embed         *embedpipeline.Pipeline
	connector     *connector.Client
	runs          *runmanager.Manager
	metrics       *observe.Metrics

	// mu guards schemas and sources — the in-process schema/source registry.
	// No global singletons: every component above is injected explicitly,
	// per the registry design note (spec §9).
	mu      sync.RWMutex
	schemas map[string]*schemadsl.Schema
	sources map[string]sourceEntry

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithGraphStore injects a graph store instead of connecting to PostgreSQL
// from config.
func WithGraphStore(s graphstore.Store) Option {
	return func(a *App) { a.store = s }
}

// WithEmbeddingProvider injects an embeddings provider instead of
// constructing one from the config registry.
func WithEmbeddingProvider(p embeddings.Provider) Option {
	return func(a *App) { a.embedProvider = p }
}

// WithEmbedPipeline injects a fully constructed embedding pipeline, bypassing
// both WithEmbeddingProvider and the pool-size config.
func WithEmbedPipeline(p *embedpipeline.Pipeline) Option {
	return func(a *App) { a.embed = p }
}

// WithConnectorClient injects a connector client instead of the default one.
func WithConnectorClient(c *connector.Client) Option {
	return func(a *App) { a.connector = c }
}

// WithRunManager injects a run manager instead of creating one from config.
func WithRunManager(m *runmanager.Manager) Option {
	return func(a *App) { a.runs = m }
}

// WithMetrics injects a metrics instance instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all ingestion subsystems together. registry
// resolves cfg.Embeddings into a concrete [embeddings.Provider] when no
// provider is injected via options. Use Option functions to inject test
// doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, registry *config.Registry, opts ...Option) (*App, error) {
	a := &App{
		cfg:     cfg,
		schemas: make(map[string]*schemadsl.Schema),
		sources: make(map[string]sourceEntry),
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Embedding provider + pipeline ─────────────────────────────────
	if err := a.initEmbeddings(registry); err != nil {
		return nil, fmt.Errorf("orchestrator: init embeddings: %w", err)
	}

	// ── 2. Connector client ───────────────────────────────────────────────
	if a.connector == nil {
		a.connector = connector.New()
	}

	// ── 3. Run manager ────────────────────────────────────────────────────
	if a.runs == nil {
		var runOpts []runmanager.Option
		if cfg.Runs.HistoryMax > 0 {
			runOpts = append(runOpts, runmanager.WithHistoryMax(cfg.Runs.HistoryMax))
		}
		a.runs = runmanager.New(runOpts...)
	}

	// ── 4. Metrics ────────────────────────────────────────────────────────
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 5. Graph store ────────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("orchestrator: init graph store: %w", err)
	}

	return a, nil
}

// initEmbeddings resolves the embedding provider and wraps it in a pipeline,
// unless either was injected.
func (a *App) initEmbeddings(registry *config.Registry) error {
	if a.embed != nil {
		return nil // fully injected
	}
	if a.embedProvider == nil {
		provider, err := registry.CreateEmbeddings(a.cfg.Embeddings)
		if err != nil {
			return fmt.Errorf("create embeddings provider: %w", err)
		}
		a.embedProvider = provider
	}

	var pipeOpts []embedpipeline.Option
	if a.cfg.Embeddings.PoolMax > 0 {
		pipeOpts = append(pipeOpts, embedpipeline.WithPoolMax(a.cfg.Embeddings.PoolMax))
	}
	a.embed = embedpipeline.New(a.embedProvider, pipeOpts...)
	return nil
}

// initStore connects to PostgreSQL using cfg.Graph.URI, unless a store was
// injected.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	if a.cfg.Graph.URI == "" {
		return fmt.Errorf("graph.uri is required when no store is injected")
	}

	store, err := postgres.NewStore(ctx, a.cfg.Graph.URI)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	return nil
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Store returns the graph store backing this app.
func (a *App) Store() graphstore.Store { return a.store }

// RunManager returns the run manager backing this app.
func (a *App) RunManager() *runmanager.Manager { return a.runs }

// EmbeddingProvider returns the embeddings provider backing this app, for
// readiness probes and other callers that need direct access.
func (a *App) EmbeddingProvider() embeddings.Provider { return a.embedProvider }

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("orchestrator shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("orchestrator shutdown complete")
	})
	return shutdownErr
}
