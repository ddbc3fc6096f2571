package listops

import (
	"context"
	"fmt"
	"math"

	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
)

func concatOp() ops.Op {
	return ops.NewRaw(ops.Def{
		Name:        "concat",
		Description: "concatenates a list of lists, skipping absent ones",
		Args:        []ops.Arg{{Name: "arrs", Type: ir.NewMaybe(ir.NewList(listArg))}},
		ReturnType: func(in ops.ArgTypes) ir.Type {
			return overListType(in.Get("arrs"), func(inner ir.Type, _ ir.List) ir.Type {
				return ir.NewList(rowType(inner))
			})
		},
		Resolve: func(ctx context.Context, _ *ops.Call, args ops.Args) (ir.Value, error) {
			return overListValue(ctx, args.Get("arrs"), func(_ context.Context, lists ir.Array, _ []ir.Value) (ir.Value, error) {
				out := ir.Array{}
				for _, list := range lists {
					elems, err := elements(list)
					if err != nil {
						return nil, err
					}
					out = append(out, elems...)
				}
				return out, nil
			})
		},
	})
}

func flattenOp() ops.Op {
	return ops.NewRaw(ops.Def{
		Name:        "flatten",
		Description: "flattens nested lists fully; non-list elements are kept",
		Args:        []ops.Arg{{Name: "arr", Type: listArg}},
		ReturnType: func(in ops.ArgTypes) ir.Type {
			return overListType(in.Get("arr"), func(row ir.Type, _ ir.List) ir.Type {
				return ir.NewList(flatType(row))
			})
		},
		Resolve: func(ctx context.Context, _ *ops.Call, args ops.Args) (ir.Value, error) {
			return overListValue(ctx, args.Get("arr"), func(_ context.Context, arr ir.Array, _ []ir.Value) (ir.Value, error) {
				return flattenInto(ir.Array{}, arr)
			})
		},
	})
}

func flattenInto(out, arr ir.Array) (ir.Array, error) {
	for _, e := range arr {
		if _, ok := ir.Detag(e).(ir.Array); !ok {
			out = append(out, e)
			continue
		}
		inner, err := elements(e)
		if err != nil {
			return nil, err
		}
		if out, err = flattenInto(out, inner); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// flatType is the element type once every list level is removed from row.
func flatType(row ir.Type) ir.Type {
	members := unionMembers(row)
	out := make([]ir.Type, 0, len(members))
	for _, m := range members {
		if ir.IsListLike(m) {
			out = append(out, flatType(rowType(m)))
			continue
		}
		out = append(out, m)
	}
	return ir.NewUnion(out...)
}

func sampleOp() ops.Op {
	return ops.NewRaw(ops.Def{
		Name:        "sample",
		Description: "returns the first n elements",
		Args: []ops.Arg{
			{Name: "arr", Type: listArg},
			{Name: "n", Type: ir.NumberType},
		},
		ReturnType: func(in ops.ArgTypes) ir.Type {
			return overListType(in.Get("arr"), func(_ ir.Type, l ir.List) ir.Type {
				return ir.List{Object: l.Object, MaxLen: l.MaxLen}
			})
		},
		Resolve: func(ctx context.Context, _ *ops.Call, args ops.Args) (ir.Value, error) {
			n, ok := ir.Detag(args.Get("n")).(ir.Num)
			if !ok || n < 0 || math.IsNaN(float64(n)) {
				return nil, fmt.Errorf("%w: sample size must be a non-negative number", ops.ErrTypeMismatch)
			}
			return overListValue(ctx, args.Get("arr"), func(_ context.Context, arr ir.Array, _ []ir.Value) (ir.Value, error) {
				// Clamp before converting: huge floats do not fit in an int.
				return Sample(arr, int(min(float64(n), float64(len(arr))))), nil
			})
		},
	})
}

// Sample returns a copy of the first n elements of arr. A negative n
// samples nothing.
func Sample(arr ir.Array, n int) ir.Array {
	n = max(0, min(n, len(arr)))
	return append(ir.Array{}, arr[:n]...)
}

func indexOp() ops.Op {
	return ops.NewRaw(ops.Def{
		Name:        "index",
		Description: "element at index; negative indexes count from the end",
		Args: []ops.Arg{
			{Name: "arr", Type: listArg},
			{Name: "index", Type: ir.NumberType},
		},
		ReturnType: func(in ops.ArgTypes) ir.Type {
			var out []ir.Type
			overListType(in.Get("arr"), func(row ir.Type, l ir.List) ir.Type {
				out = append(out, row)
				return l
			})
			if len(out) == 0 {
				return ir.AnyType
			}
			return ir.NewMaybe(ir.NewUnion(out...))
		},
		Resolve: func(_ context.Context, _ *ops.Call, args ops.Args) (ir.Value, error) {
			idx, ok := ir.Detag(args.Get("index")).(ir.Num)
			if !ok {
				return nil, ops.ErrAbsent
			}
			arr, err := elements(args.Get("arr"))
			if err != nil {
				return nil, err
			}
			i := math.Trunc(float64(idx))
			if i < 0 {
				i += float64(len(arr))
			}
			if math.IsNaN(i) || i < 0 || i >= float64(len(arr)) {
				return nil, ops.ErrAbsent
			}
			return arr[int(i)], nil
		},
	})
}

func countOp() ops.Op {
	return ops.LiftBasicDimDown(ops.Def{
		Name:        "count",
		Description: "number of elements",
		Args:        []ops.Arg{{Name: "arr", Type: ir.NewList(ir.AnyType)}},
		ReturnType:  func(ops.ArgTypes) ir.Type { return ir.NumberType },
		Resolve: func(_ context.Context, _ *ops.Call, args ops.Args) (ir.Value, error) {
			arr, ok := args.First().(ir.Array)
			if !ok {
				return nil, fmt.Errorf("%w: count expects a list", ops.ErrTypeMismatch)
			}
			return ir.Num(len(arr)), nil
		},
	})
}

func dropNAOp() ops.Op {
	return ops.NewRaw(ops.Def{
		Name:        "dropna",
		Description: "removes absent elements",
		Args:        []ops.Arg{{Name: "arr", Type: listArg}},
		ReturnType: func(in ops.ArgTypes) ir.Type {
			return overListType(in.Get("arr"), func(_ ir.Type, l ir.List) ir.Type {
				return ir.List{Object: ir.NonNullable(l.Object), MaxLen: l.MaxLen}
			})
		},
		Resolve: func(ctx context.Context, _ *ops.Call, args ops.Args) (ir.Value, error) {
			return overListValue(ctx, args.Get("arr"), func(_ context.Context, arr ir.Array, _ []ir.Value) (ir.Value, error) {
				out := ir.Array{}
				for _, e := range arr {
					if !ir.IsNull(e) {
						out = append(out, e)
					}
				}
				return out, nil
			})
		},
	})
}

func uniqueOp() ops.Op {
	return ops.NewRaw(ops.Def{
		Name:        "unique",
		Description: "removes duplicate elements, keeping the first occurrence",
		Args:        []ops.Arg{{Name: "arr", Type: listArg}},
		ReturnType: func(in ops.ArgTypes) ir.Type {
			return overListType(in.Get("arr"), func(_ ir.Type, l ir.List) ir.Type {
				return ir.List{Object: l.Object, MaxLen: l.MaxLen}
			})
		},
		Resolve: func(ctx context.Context, _ *ops.Call, args ops.Args) (ir.Value, error) {
			return overListValue(ctx, args.Get("arr"), func(_ context.Context, arr ir.Array, _ []ir.Value) (ir.Value, error) {
				seen := make(map[string]bool, len(arr))
				out := ir.Array{}
				for _, e := range arr {
					key, err := SafeKey(e)
					if err != nil {
						return nil, err
					}
					if seen[key] {
						continue
					}
					seen[key] = true
					out = append(out, e)
				}
				return out, nil
			})
		},
	})
}
