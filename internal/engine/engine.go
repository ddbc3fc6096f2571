package engine

import (
	"context"
	"io"
	"log/slog"

	"github.com/roach88/opgraph/internal/cache"
	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
)

const (
	// DefaultSampleLimit is how many list elements refinement inspects.
	DefaultSampleLimit = 10

	// DefaultConcurrency bounds sibling fan-out during execution and
	// refinement.
	DefaultConcurrency = 8
)

// Engine executes and refines expression graphs over a registry of
// operations and a backend.
//
// Thread-safety: an Engine is immutable after construction and safe for
// concurrent use. Every Execute call owns its forward graph and every
// Refine call owns its memo table.
type Engine struct {
	registry    *ops.Registry
	backend     ops.Backend
	cache       *cache.Cache
	queryIDs    QueryIDGenerator
	logger      *slog.Logger
	sampleLimit int
	concurrency int
}

var _ ops.Client = (*Engine)(nil)

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithSampleLimit sets how many elements refinement samples.
//
// Default: 10 (DefaultSampleLimit)
func WithSampleLimit(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.sampleLimit = n
		}
	}
}

// WithConcurrency bounds how many sibling nodes or list elements are
// evaluated at once.
//
// Default: 8 (DefaultConcurrency). Use WithConcurrency(1) for strictly
// sequential evaluation.
func WithConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithCache sets the cache handed to resolvers. Defaults to the registry's
// cache, or a fresh one when the registry has none.
func WithCache(c *cache.Cache) EngineOption {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithQueryIDGenerator sets the generator for forward graph query IDs.
//
// Default: UUIDv7Generator. Use NewFixedGenerator in tests.
func WithQueryIDGenerator(g QueryIDGenerator) EngineOption {
	return func(e *Engine) {
		e.queryIDs = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine. backend may be nil when no operation needs one.
func New(registry *ops.Registry, backend ops.Backend, opts ...EngineOption) *Engine {
	e := &Engine{
		registry:    registry,
		backend:     backend,
		cache:       registry.Cache(),
		queryIDs:    UUIDv7Generator{},
		logger:      slog.Default(),
		sampleLimit: DefaultSampleLimit,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = cache.New()
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e
}

// Registry returns the engine's operation registry.
func (e *Engine) Registry() *ops.Registry {
	return e.registry
}

// SampleLimit returns the configured refinement sample size.
func (e *Engine) SampleLimit() int {
	return e.sampleLimit
}

// Execute evaluates node as one query.
func (e *Engine) Execute(ctx context.Context, node ir.Node, stack *ir.Stack) (ir.Value, error) {
	g := e.NewForwardGraph()
	e.logger.Debug("query start", "query_id", g.QueryID(), "node", ir.NodeString(node))

	v, err := g.Execute(ctx, node, stack)
	if err != nil {
		e.logger.Debug("query failed", "query_id", g.QueryID(), "error", err)
		return nil, err
	}
	e.logger.Debug("query end", "query_id", g.QueryID(), "evaluated", g.Len())
	return v, nil
}

// Refine returns a copy of node whose types reflect the data it will see.
func (e *Engine) Refine(ctx context.Context, node ir.Node, stack *ir.Stack) (ir.Node, error) {
	return newRefinement(e).Refine(ctx, node, stack)
}
