package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/roach88/opgraph/internal/algebra"
	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/listops"
	"github.com/roach88/opgraph/internal/ops"
)

// refinement holds the memo table of one Refine call. A node reachable
// along several paths is refined once per stack.
type refinement struct {
	engine *Engine

	mu    sync.RWMutex
	done  map[string]ir.Node
	group singleflight.Group
}

var _ ops.Client = (*refinement)(nil)

func newRefinement(e *Engine) *refinement {
	return &refinement{engine: e, done: make(map[string]ir.Node)}
}

// Execute runs node as a separate query. Refiners use it to look at data.
func (r *refinement) Execute(ctx context.Context, node ir.Node, stack *ir.Stack) (ir.Value, error) {
	return r.engine.Execute(ctx, node, stack)
}

// Refine refines node, sharing this refinement's memo table.
func (r *refinement) Refine(ctx context.Context, node ir.Node, stack *ir.Stack) (ir.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch n := node.(type) {
	case *ir.ConstNode:
		return n, nil
	case *ir.VarNode:
		if b, ok := stack.Lookup(n.Name); ok && b.Type != nil {
			return ir.NewVar(n.Name, b.Type), nil
		}
		return n, nil
	case *ir.Output:
		return r.refineOutput(ctx, n, stack)
	}
	return nil, fmt.Errorf("refine: unsupported node %T", node)
}

func (r *refinement) refineOutput(ctx context.Context, n *ir.Output, stack *ir.Stack) (ir.Node, error) {
	key := identity(n, stack)

	r.mu.RLock()
	done, ok := r.done[key]
	r.mu.RUnlock()
	if ok {
		return done, nil
	}

	result, err, _ := r.group.Do(key, func() (any, error) {
		refined, err := r.refineNode(ctx, n, stack)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.done[key] = refined
		r.mu.Unlock()
		return refined, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(ir.Node), nil
}

func (r *refinement) refineNode(ctx context.Context, n *ir.Output, stack *ir.Stack) (*ir.Output, error) {
	e := r.engine
	op, ok := e.registry.Lookup(n.OpName)
	if !ok {
		return nil, NewUnknownOpError(n.OpName)
	}

	inputs := make(ir.Inputs, len(n.Inputs))
	copy(inputs, n.Inputs)

	// Data inputs first; function parameter types depend on them.
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.concurrency)
	for i, in := range n.Inputs {
		if ir.IsFnNode(in.Node) {
			continue
		}
		eg.Go(func() error {
			refined, err := r.Refine(egctx, in.Node, stack)
			if err != nil {
				return err
			}
			inputs[i] = ir.In(in.Name, refined)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	eg, egctx = errgroup.WithContext(ctx)
	eg.SetLimit(e.concurrency)
	for i, in := range n.Inputs {
		if !ir.IsFnNode(in.Node) {
			continue
		}
		eg.Go(func() error {
			refined, err := r.refineFunction(egctx, op, in.Name, in.Node.(*ir.ConstNode), inputs, stack)
			if err != nil {
				return err
			}
			inputs[i] = ir.In(in.Name, refined)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	inTypes := ops.InputTypes(inputs)
	node := n.WithInputs(inputs).WithType(op.ReturnType(inTypes))

	var (
		t   ir.Type
		err error
	)
	switch {
	case op.RefineVia() != "":
		t, err = r.delegate(ctx, op, node, stack)
	case op.Refiner() != nil:
		t, err = op.Refiner()(ctx, &ops.RefineCall{
			InputTypes:  inTypes,
			Node:        node,
			Executable:  bindValues(node, stack).(*ir.Output),
			Client:      r,
			Stack:       stack,
			SampleLimit: e.sampleLimit,
		})
	default:
		return node, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Debug("degraded type", "op", n.OpName, "type", node.Type.String(), "error", err)
		return node, nil
	}
	return node.WithType(t), nil
}

// delegate refines node by executing its paired type-only operation over a
// sample of the first input and unioning the collected types. The union is
// rewrapped through the operation's plan so the outer shape follows the
// first input's type.
func (r *refinement) delegate(ctx context.Context, op ops.Op, node *ir.Output, stack *ir.Stack) (ir.Type, error) {
	e := r.engine
	via := op.RefineVia()
	if _, ok := e.registry.Lookup(via); !ok {
		return nil, NewUnknownOpError(via)
	}
	if len(node.Inputs) == 0 {
		return nil, fmt.Errorf("refine %s: delegation needs an input", op.Name())
	}

	exec := bindValues(node, stack).(*ir.Output)
	first := exec.Inputs[0]
	v, err := e.Execute(ctx, first.Node, stack)
	if err != nil {
		return nil, err
	}
	sampled, err := sampleValue(ctx, v, e.sampleLimit)
	if err != nil {
		return nil, err
	}

	inputs := append(ir.Inputs{ir.In(first.Name, ir.NewTypedConstNode(first.Node.NodeType(), sampled))}, exec.Inputs[1:]...)
	typeNode := ir.NewOutput(ir.TypeType, via, inputs)
	e.logger.Debug("refine delegation", "op", op.Name(), "via", via)

	tv, err := e.Execute(ctx, typeNode, stack)
	if err != nil {
		return nil, err
	}
	types := collectTypes(tv)
	if len(types) == 0 {
		return nil, errors.New("type-only operation produced no types")
	}
	core := ir.NewUnion(types...)
	return op.ProjectCoreType(ops.InputTypes(node.Inputs), core), nil
}

// refineFunction refines a function literal argument. Parameters take the
// types the operation declares for them. When the body contains operations
// that need data to be typed, the feeding list is executed and the body is
// refined once per sampled row, and the output types are unioned.
func (r *refinement) refineFunction(ctx context.Context, op ops.Op, name string, fnNode *ir.ConstNode, inputs ir.Inputs, stack *ir.Stack) (ir.Node, error) {
	fn := fnNode.Val.(ir.FuncValue)
	params := paramTypes(fnNode, fn)
	if declared, ok := op.FunctionInputs(name, ops.InputTypes(inputs)); ok {
		for i, p := range declared {
			if i < len(params) {
				params[i].Type = p.Type
			}
		}
	}

	frame := make(ir.Frame, len(params))
	for _, p := range params {
		frame[p.Key] = ir.TypeBinding(p.Type)
	}
	body, err := r.Refine(ctx, fn.Body, stack.Push(frame))
	if err != nil {
		return nil, err
	}

	if needsData(r.engine.registry, fn.Body) {
		if src, ok := op.RowSource(name); ok {
			if t, ok := r.sampleFunction(ctx, op, name, src, fn, params, inputs, stack); ok {
				if out, isOutput := body.(*ir.Output); isOutput {
					body = out.WithType(t)
				}
			}
		}
	}
	return ir.NewFn(params, body), nil
}

func (r *refinement) sampleFunction(ctx context.Context, op ops.Op, name, src string, fn ir.FuncValue, params []ir.Prop, inputs ir.Inputs, stack *ir.Stack) (ir.Type, bool) {
	e := r.engine
	listNode, ok := inputs.Get(src)
	if !ok {
		return nil, false
	}
	v, err := e.Execute(ctx, bindValues(listNode, stack), stack)
	if err != nil {
		e.logger.Debug("sampling skipped", "op", op.Name(), "arg", name, "error", err)
		return nil, false
	}
	rows, ok := algebra.DistributeTag(v).(ir.Array)
	if !ok || len(rows) == 0 {
		return nil, false
	}
	rows = listops.Sample(rows, e.sampleLimit)
	e.logger.Debug("bounded sampling", "op", op.Name(), "arg", name, "samples", len(rows))

	types := make([]ir.Type, len(rows))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.concurrency)
	for i, row := range rows {
		eg.Go(func() error {
			frame := make(ir.Frame, len(params))
			for j, p := range params {
				switch j {
				case 0:
					frame[p.Key] = ir.ValueBinding(p.Type, row)
				case 1:
					frame[p.Key] = ir.ValueBinding(ir.NumberType, ir.Num(i))
				default:
					frame[p.Key] = ir.TypeBinding(p.Type)
				}
			}
			body, err := r.Refine(egctx, fn.Body, stack.Push(frame))
			if err != nil {
				return err
			}
			types[i] = body.NodeType()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		e.logger.Debug("sampling failed", "op", op.Name(), "arg", name, "error", err)
		return nil, false
	}
	return ir.NewUnion(types...), true
}

func paramTypes(fnNode *ir.ConstNode, fn ir.FuncValue) []ir.Prop {
	params := make([]ir.Prop, len(fn.Params))
	declared, _ := fnNode.Type.(ir.Function)
	for i, name := range fn.Params {
		params[i] = ir.P(name, ir.AnyType)
		if i < len(declared.Inputs) {
			params[i].Type = declared.Inputs[i].Type
		}
	}
	return params
}

// needsData reports whether n contains an operation whose output type can
// only be learned from data.
func needsData(registry *ops.Registry, n ir.Node) bool {
	found := false
	ir.WalkNodes(n, func(n ir.Node) bool {
		if out, ok := n.(*ir.Output); ok {
			if op, ok := registry.Lookup(out.OpName); ok && (op.RefineVia() != "" || op.Refiner() != nil) {
				found = true
			}
		}
		return !found
	})
	return found
}

// bindValues replaces variables bound to values in stack by literals, so
// the node can be executed on its own. Function parameters shadow outer
// bindings.
func bindValues(n ir.Node, stack *ir.Stack) ir.Node {
	return bindValuesShadowed(n, stack, nil)
}

func bindValuesShadowed(n ir.Node, stack *ir.Stack, shadowed map[string]bool) ir.Node {
	switch nn := n.(type) {
	case *ir.VarNode:
		if shadowed[nn.Name] {
			return nn
		}
		if b, ok := stack.Lookup(nn.Name); ok && b.HasValue {
			return ir.NewTypedConstNode(b.Type, b.Value)
		}
		return nn
	case *ir.Output:
		inputs := make(ir.Inputs, len(nn.Inputs))
		for i, in := range nn.Inputs {
			inputs[i] = ir.In(in.Name, bindValuesShadowed(in.Node, stack, shadowed))
		}
		return nn.WithInputs(inputs)
	case *ir.ConstNode:
		fn, ok := nn.Val.(ir.FuncValue)
		if !ok {
			return nn
		}
		inner := make(map[string]bool, len(shadowed)+len(fn.Params))
		for k := range shadowed {
			inner[k] = true
		}
		for _, p := range fn.Params {
			inner[p] = true
		}
		body := bindValuesShadowed(fn.Body, stack, inner)
		return ir.NewTypedConstNode(nn.Type, ir.FuncValue{Params: fn.Params, Body: body})
	}
	return n
}

// sampleValue truncates every list reachable through absence and tag
// layers to limit elements.
func sampleValue(ctx context.Context, v ir.Value, limit int) (ir.Value, error) {
	return algebra.Basic.Value(ctx, v, func(_ context.Context, v ir.Value, _ algebra.Scope) (ir.Value, error) {
		if arr, ok := v.(ir.Array); ok {
			return listops.Sample(arr, limit), nil
		}
		return v, nil
	})
}

// collectTypes gathers every TypeValue in v.
func collectTypes(v ir.Value) []ir.Type {
	var out []ir.Type
	var walk func(v ir.Value)
	walk = func(v ir.Value) {
		switch vv := v.(type) {
		case ir.TypeValue:
			out = append(out, vv.T)
		case ir.TaggedValue:
			walk(vv.Value)
		case ir.Array:
			for _, e := range vv {
				walk(e)
			}
		}
	}
	walk(v)
	return out
}
