package embedpipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/graphkb/internal/resilience"
	"github.com/MrWong99/graphkb/pkg/provider/embeddings"
)

// DefaultPoolMax is EMBEDDING_POOL_MAX's default: at most this many
// concurrent calls against the embedding provider.
const DefaultPoolMax = 8

// EmbedDegraded records that a document's embedding fell back to a
// deterministic pseudo-random vector after the provider persistently
// failed. It is a non-fatal, per-document warning: the document is still
// ingested.
type EmbedDegraded struct {
	Label  string
	Key    string
	Reason string
}

func (e *EmbedDegraded) Error() string {
	return "embedpipeline: degraded embedding for " + e.Label + "/" + e.Key + ": " + e.Reason
}

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithPoolMax bounds concurrent provider calls. Default: [DefaultPoolMax].
func WithPoolMax(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.poolMax = n
		}
	}
}

// WithRetry overrides the retry schedule used per embedding call. Default:
// matches [connector.DefaultRetry]'s base=250ms/cap=4s/N=3 schedule.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(p *Pipeline) { p.retry = cfg }
}

// WithCircuitBreaker overrides the circuit breaker guarding the provider.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(p *Pipeline) { p.breaker = resilience.NewCircuitBreaker(cfg) }
}

// Pipeline embeds text for ingestion, bounding concurrency and degrading
// gracefully when the underlying provider fails.
type Pipeline struct {
	provider embeddings.Provider
	breaker  *resilience.CircuitBreaker
	retry    resilience.RetryConfig
	poolMax  int
}

// New constructs a Pipeline around provider.
func New(provider embeddings.Provider, opts ...Option) *Pipeline {
	p := &Pipeline{
		provider: provider,
		breaker:  resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "embedpipeline"}),
		retry:    resilience.RetryConfig{MaxAttempts: 4, Base: 250 * time.Millisecond, Cap: 4 * time.Second},
		poolMax:  DefaultPoolMax,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// EmbedNode embeds a single node's text. On persistent provider failure it
// returns a deterministic fallback vector plus a non-nil *EmbedDegraded —
// never a bare error, since the spec requires ingestion to complete even
// when embedding degrades.
func (p *Pipeline) EmbedNode(ctx context.Context, label, key, text string) ([]float32, *EmbedDegraded) {
	var vec []float32
	err := p.breaker.Execute(func() error {
		return resilience.Retry(ctx, p.retry, nil, func() error {
			v, embedErr := p.provider.Embed(ctx, text)
			if embedErr != nil {
				return embedErr
			}
			vec = v
			return nil
		})
	})
	if err != nil {
		return fallbackVector(text, p.provider.Dimensions()), &EmbedDegraded{Label: label, Key: key, Reason: err.Error()}
	}
	return vec, nil
}

// EmbedBatch embeds each text concurrently, bounded by the pipeline's pool
// max. Results and degradation records are returned in input order;
// results[i]/degraded[i] correspond to texts[i]/labels[i]/keys[i].
func (p *Pipeline) EmbedBatch(ctx context.Context, labels, keys, texts []string) ([][]float32, []*EmbedDegraded) {
	results := make([][]float32, len(texts))
	degraded := make([]*EmbedDegraded, len(texts))

	var g errgroup.Group
	g.SetLimit(p.poolMax)
	for i := range texts {
		i := i
		g.Go(func() error {
			results[i], degraded[i] = p.EmbedNode(ctx, labels[i], keys[i], texts[i])
			return nil
		})
	}
	_ = g.Wait()

	return results, degraded
}
