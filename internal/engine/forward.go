package engine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
	"github.com/roach88/opgraph/internal/queryir"
)

// ForwardGraph evaluates the nodes of a single query.
//
// Results are memoized per (node, stack) pair: a node reachable along
// several paths of the same query is resolved once, and concurrent
// requests for it share one evaluation. Failures are not memoized.
//
// Thread-safety: safe for concurrent use. Resolvers receive the graph as
// their ops.Client so function bodies evaluate within the same query.
type ForwardGraph struct {
	engine  *Engine
	queryID string

	mu      sync.RWMutex
	results map[string]ir.Value
	group   singleflight.Group
}

var _ ops.Client = (*ForwardGraph)(nil)

// NewForwardGraph starts a new query.
func (e *Engine) NewForwardGraph() *ForwardGraph {
	return &ForwardGraph{
		engine:  e,
		queryID: e.queryIDs.Generate(),
		results: make(map[string]ir.Value),
	}
}

// QueryID returns the query's ID.
func (g *ForwardGraph) QueryID() string {
	return g.queryID
}

// Len returns the number of memoized node results.
func (g *ForwardGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.results)
}

// identity keys memo tables by node and stack pointer identity.
func identity(node ir.Node, stack *ir.Stack) string {
	return fmt.Sprintf("%p/%p", node, stack)
}

// Execute evaluates node under stack within this query.
func (g *ForwardGraph) Execute(ctx context.Context, node ir.Node, stack *ir.Stack) (ir.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch n := node.(type) {
	case *ir.ConstNode:
		return n.Val, nil
	case *ir.VarNode:
		b, ok := stack.Lookup(n.Name)
		if !ok || !b.HasValue {
			return nil, NewUnboundVarError(n.Name)
		}
		return b.Value, nil
	case *ir.Output:
		return g.executeOutput(ctx, n, stack)
	}
	return nil, fmt.Errorf("execute: unsupported node %T", node)
}

// Refine refines node with the owning engine.
func (g *ForwardGraph) Refine(ctx context.Context, node ir.Node, stack *ir.Stack) (ir.Node, error) {
	return g.engine.Refine(ctx, node, stack)
}

func (g *ForwardGraph) executeOutput(ctx context.Context, n *ir.Output, stack *ir.Stack) (ir.Value, error) {
	key := identity(n, stack)

	g.mu.RLock()
	v, ok := g.results[key]
	g.mu.RUnlock()
	if ok {
		return v, nil
	}

	result, err, _ := g.group.Do(key, func() (any, error) {
		v, err := g.resolve(ctx, n, stack)
		if err != nil {
			return nil, err
		}
		g.mu.Lock()
		g.results[key] = v
		g.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(ir.Value), nil
}

func (g *ForwardGraph) resolve(ctx context.Context, n *ir.Output, stack *ir.Stack) (ir.Value, error) {
	e := g.engine
	op, ok := e.registry.Lookup(n.OpName)
	if !ok {
		return nil, NewUnknownOpError(n.OpName)
	}

	values := make([]ir.Value, len(n.Inputs))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.concurrency)
	for i, in := range n.Inputs {
		if ir.IsFnNode(in.Node) {
			values[i] = in.Node.(*ir.ConstNode).Val
			continue
		}
		eg.Go(func() error {
			v, err := g.Execute(egctx, in.Node, stack)
			if err != nil {
				return err
			}
			values[i] = v
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	call := &ops.Call{
		Inputs:      ops.Args{Names: n.Inputs.Names(), Values: values},
		Forward:     ops.ForwardOp{QueryID: g.queryID, Node: n},
		Engine:      g,
		Cache:       e.cache,
		Stack:       stack,
		Concurrency: e.concurrency,
		SampleLimit: e.sampleLimit,
	}
	if e.backend != nil {
		call.Backend = &backend{b: e.backend, queryID: g.queryID, engine: e}
	}
	v, err := op.Resolve(ctx, call)
	if err != nil {
		return nil, wrapResolveError(n.OpName, err)
	}
	return v, nil
}

// backend tags backend failures and logs backend traffic per query.
type backend struct {
	b       ops.Backend
	queryID string
	engine  *Engine
}

func (p *backend) Fetch(ctx context.Context, ref ir.Ref) (ir.Value, error) {
	p.engine.logger.Debug("backend fetch", "query_id", p.queryID, "kind", ref.Kind, "digest", ref.Digest)
	v, err := p.b.Fetch(ctx, ref)
	if err != nil {
		return nil, &backendError{op: "fetch", err: err}
	}
	return v, nil
}

func (p *backend) Content(ctx context.Context, ref ir.Ref) ([]byte, error) {
	p.engine.logger.Debug("backend content", "query_id", p.queryID, "kind", ref.Kind, "digest", ref.Digest)
	data, err := p.b.Content(ctx, ref)
	if err != nil {
		return nil, &backendError{op: "content", err: err}
	}
	return data, nil
}

func (p *backend) Query(ctx context.Context, q queryir.Query) ([]ir.Value, error) {
	p.engine.logger.Debug("backend query", "query_id", p.queryID)
	rows, err := p.b.Query(ctx, q)
	if err != nil {
		return nil, &backendError{op: "query", err: err}
	}
	return rows, nil
}
