package listops

import (
	"context"

	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
)

func mapOp() ops.Op {
	return ops.NewRaw(ops.Def{
		Name:        "map",
		Description: "applies mapFn(row, index) to each element",
		Args: []ops.Arg{
			{Name: "arr", Type: listArg},
			{Name: "mapFn", Type: fnArg},
		},
		ReturnType: func(in ops.ArgTypes) ir.Type {
			out := fnOutput(in.Get("mapFn"))
			return overListType(in.Get("arr"), func(_ ir.Type, l ir.List) ir.Type {
				return ir.List{Object: out, MinLen: l.MinLen, MaxLen: l.MaxLen}
			})
		},
		Resolve: func(ctx context.Context, c *ops.Call, args ops.Args) (ir.Value, error) {
			fn, err := funcArg(args, "mapFn")
			if err != nil {
				return nil, err
			}
			return overListValue(ctx, args.Get("arr"), func(ctx context.Context, arr ir.Array, tags []ir.Value) (ir.Value, error) {
				rows := make(ir.Array, len(arr))
				for i, e := range arr {
					rows[i] = distribute(e, tags)
				}
				out, err := applyFn(ctx, c, fn, rows)
				if err != nil {
					return nil, err
				}
				return ir.Array(out), nil
			})
		},
		FunctionInputs: map[string]ops.FunctionInputsFunc{"mapFn": rowInputs("arr")},
		FunctionRows:   map[string]string{"mapFn": "arr"},
	})
}

func filterOp() ops.Op {
	return ops.NewRaw(ops.Def{
		Name:        "filter",
		Description: "keeps elements for which filterFn(row, index) is truthy",
		Args: []ops.Arg{
			{Name: "arr", Type: listArg},
			{Name: "filterFn", Type: fnArg},
		},
		ReturnType: func(in ops.ArgTypes) ir.Type {
			return overListType(in.Get("arr"), func(_ ir.Type, l ir.List) ir.Type {
				return ir.List{Object: l.Object, MaxLen: l.MaxLen}
			})
		},
		Resolve: func(ctx context.Context, c *ops.Call, args ops.Args) (ir.Value, error) {
			fn, err := funcArg(args, "filterFn")
			if err != nil {
				return nil, err
			}
			return overListValue(ctx, args.Get("arr"), func(ctx context.Context, arr ir.Array, tags []ir.Value) (ir.Value, error) {
				rows := make(ir.Array, len(arr))
				for i, e := range arr {
					rows[i] = distribute(e, tags)
				}
				keep, err := applyFn(ctx, c, fn, rows)
				if err != nil {
					return nil, err
				}
				out := ir.Array{}
				for i, k := range keep {
					if ir.Truthy(k) {
						out = append(out, arr[i])
					}
				}
				return out, nil
			})
		},
		FunctionInputs: map[string]ops.FunctionInputsFunc{"filterFn": rowInputs("arr")},
		FunctionRows:   map[string]string{"filterFn": "arr"},
	})
}
