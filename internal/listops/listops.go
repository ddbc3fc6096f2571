// Package listops provides the list, join and group operation family:
// map, filter, sort, groupby, join, joinAll and the collection helpers.
//
// These operations manage their own wrapping. The list argument may be
// absent or tagged; its tag is distributed onto each element before a
// function argument sees it, and the result is rewrapped with the list's
// outer layers. Function arguments are evaluated through the engine client
// with their parameters bound in a new stack frame.
package listops

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/opgraph/internal/algebra"
	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
)

// All returns every list operation.
func All() []ops.Op {
	return []ops.Op{
		mapOp(),
		filterOp(),
		sortOp(),
		groupByOp(),
		joinOp(),
		joinAllOp(),
		concatOp(),
		flattenOp(),
		sampleOp(),
		indexOp(),
		countOp(),
		dropNAOp(),
		uniqueOp(),
		tableRowsOp(),
		tableRowsTypeOp(),
	}
}

// Register adds every list operation to r.
func Register(r *ops.Registry) error {
	return r.RegisterAll(All()...)
}

var (
	listArg = ir.NewMaybe(ir.NewList(ir.AnyType))
	fnArg   = ir.NewFunction(nil, ir.AnyType)
)

// overListType applies f inside the absence and tag layers of a list type.
// f receives the element type with the list's tags distributed onto it,
// and the bare list type.
func overListType(t ir.Type, f func(row ir.Type, l ir.List) ir.Type) ir.Type {
	out, _ := algebra.Basic.TypeCtx(context.Background(), t, func(_ context.Context, t ir.Type, scope algebra.Scope) (ir.Type, error) {
		l, ok := t.(ir.List)
		if !ok {
			l = ir.List{Object: ir.AnyType}
		}
		row := l.Object
		for _, tag := range scope.TagTypes() {
			row = ir.NewTagged(tag, row)
		}
		return f(row, l), nil
	})
	return out
}

// overListValue is the value-level twin of overListType.
func overListValue(ctx context.Context, v ir.Value, f func(ctx context.Context, arr ir.Array, tags []ir.Value) (ir.Value, error)) (ir.Value, error) {
	return algebra.Basic.Value(ctx, v, func(ctx context.Context, v ir.Value, scope algebra.Scope) (ir.Value, error) {
		arr, ok := v.(ir.Array)
		if !ok {
			return nil, fmt.Errorf("%w: expected a list, got %s", ops.ErrTypeMismatch, ir.ValueString(v))
		}
		return f(ctx, arr, scope.Tags())
	})
}

// rowType returns the element type of a (possibly absent or tagged) list
// type, with tags distributed.
func rowType(t ir.Type) ir.Type {
	var rows []ir.Type
	overListType(t, func(row ir.Type, _ ir.List) ir.Type {
		rows = append(rows, row)
		return row
	})
	if len(rows) == 0 {
		return ir.AnyType
	}
	return ir.NewUnion(rows...)
}

func distribute(v ir.Value, tags []ir.Value) ir.Value {
	for _, tag := range tags {
		v = ir.WithTag(tag, v)
	}
	return v
}

// elements returns the elements of a possibly tagged list value with its
// tag distributed. Absent lists have no elements.
func elements(v ir.Value) (ir.Array, error) {
	if ir.IsNull(v) {
		return nil, nil
	}
	if arr, ok := algebra.DistributeTag(v).(ir.Array); ok {
		return arr, nil
	}
	return nil, fmt.Errorf("%w: expected a list, got %s", ops.ErrTypeMismatch, ir.ValueString(v))
}

func fnOutput(t ir.Type) ir.Type {
	if fn, ok := t.(ir.Function); ok {
		return fn.Output
	}
	return ir.AnyType
}

func funcArg(args ops.Args, name string) (ir.FuncValue, error) {
	fn, ok := args.Get(name).(ir.FuncValue)
	if !ok {
		return ir.FuncValue{}, fmt.Errorf("%w: %s must be a function", ops.ErrTypeMismatch, name)
	}
	return fn, nil
}

// callFn evaluates a function body with its parameters bound to values.
// Extra values beyond the declared parameters are ignored.
func callFn(ctx context.Context, c *ops.Call, fn ir.FuncValue, values ...ir.Value) (ir.Value, error) {
	if c.Engine == nil {
		return nil, fmt.Errorf("cannot evaluate function without an engine")
	}
	frame := make(ir.Frame, len(fn.Params))
	for i, p := range fn.Params {
		if i < len(values) {
			frame[p] = ir.ValueBinding(nil, values[i])
		}
	}
	return c.Engine.Execute(ctx, fn.Body, c.Stack.Push(frame))
}

// forEach runs f for indices [0, n) with bounded concurrency and returns
// results in positional order.
func forEach(ctx context.Context, n, limit int, f func(ctx context.Context, i int) (ir.Value, error)) ([]ir.Value, error) {
	out := make([]ir.Value, n)
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			v, err := f(gctx, i)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// applyFn evaluates fn for every row (with its index) concurrently.
func applyFn(ctx context.Context, c *ops.Call, fn ir.FuncValue, rows ir.Array) ([]ir.Value, error) {
	return forEach(ctx, len(rows), c.Concurrency, func(ctx context.Context, i int) (ir.Value, error) {
		return callFn(ctx, c, fn, rows[i], ir.Num(i))
	})
}

func constString(t ir.Type, fallback string) string {
	if c, ok := t.(ir.Const); ok {
		if s, ok := c.Val.(ir.Str); ok {
			return string(s)
		}
	}
	return fallback
}

func constBool(t ir.Type) bool {
	if c, ok := t.(ir.Const); ok {
		if b, ok := c.Val.(ir.Bool); ok {
			return bool(b)
		}
	}
	return false
}

func rowInputs(name string) ops.FunctionInputsFunc {
	return func(in ops.ArgTypes) []ir.Prop {
		return []ir.Prop{ir.P("row", rowType(in.Get(name))), ir.P("index", ir.NumberType)}
	}
}
