package listops

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
)

func sortOp() ops.Op {
	return ops.NewRaw(ops.Def{
		Name:        "sort",
		Description: "stable sort by the tuple compFn(row) with per-column asc/desc",
		Args: []ops.Arg{
			{Name: "arr", Type: listArg},
			{Name: "compFn", Type: fnArg},
			{Name: "columnDirs", Type: ir.NewMaybe(ir.NewList(ir.StringType))},
		},
		ReturnType: func(in ops.ArgTypes) ir.Type {
			return overListType(in.Get("arr"), func(_ ir.Type, l ir.List) ir.Type { return l })
		},
		Resolve: func(ctx context.Context, c *ops.Call, args ops.Args) (ir.Value, error) {
			fn, err := funcArg(args, "compFn")
			if err != nil {
				return nil, err
			}
			dirs, err := columnDirs(args.Get("columnDirs"))
			if err != nil {
				return nil, err
			}
			return overListValue(ctx, args.Get("arr"), func(ctx context.Context, arr ir.Array, tags []ir.Value) (ir.Value, error) {
				rows := make(ir.Array, len(arr))
				for i, e := range arr {
					rows[i] = distribute(e, tags)
				}
				keys, err := applyFn(ctx, c, fn, rows)
				if err != nil {
					return nil, err
				}
				order := make([]int, len(arr))
				for i := range order {
					order[i] = i
				}
				slices.SortStableFunc(order, func(a, b int) int {
					return compareTuples(keys[a], keys[b], dirs)
				})
				out := make(ir.Array, len(arr))
				for i, idx := range order {
					out[i] = arr[idx]
				}
				return out, nil
			})
		},
		FunctionInputs: map[string]ops.FunctionInputsFunc{"compFn": rowInputs("arr")},
		FunctionRows:   map[string]string{"compFn": "arr"},
	})
}

// columnDirs reads the direction flags; true means descending.
func columnDirs(v ir.Value) ([]bool, error) {
	if ir.IsNull(v) {
		return nil, nil
	}
	arr, ok := ir.DetagDeep(v).(ir.Array)
	if !ok {
		return nil, fmt.Errorf("%w: columnDirs must be a list", ops.ErrTypeMismatch)
	}
	dirs := make([]bool, len(arr))
	for i, d := range arr {
		s, _ := d.(ir.Str)
		switch strings.ToLower(string(s)) {
		case "asc", "":
		case "desc":
			dirs[i] = true
		default:
			return nil, fmt.Errorf("%w: column direction %q", ops.ErrTypeMismatch, s)
		}
	}
	return dirs, nil
}

// compareTuples compares sort keys column by column. A non-list key is a
// one-column tuple.
func compareTuples(a, b ir.Value, desc []bool) int {
	at, bt := asTuple(a), asTuple(b)
	for i := 0; i < max(len(at), len(bt)); i++ {
		var av, bv ir.Value = ir.Null{}, ir.Null{}
		if i < len(at) {
			av = at[i]
		}
		if i < len(bt) {
			bv = bt[i]
		}
		c := compareValues(av, bv)
		if i < len(desc) && desc[i] {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func asTuple(v ir.Value) ir.Array {
	if arr, ok := ir.Detag(v).(ir.Array); ok {
		return arr
	}
	return ir.Array{v}
}

// compareValues is a total order: absent sorts before any defined value,
// arrays compare element-wise, and values of different kinds order by kind.
func compareValues(a, b ir.Value) int {
	a, b = ir.Detag(a), ir.Detag(b)
	aNull, bNull := ir.IsNull(a), ir.IsNull(b)
	switch {
	case aNull && bNull:
		return 0
	case aNull:
		return -1
	case bNull:
		return 1
	}

	switch av := a.(type) {
	case ir.Num:
		if bv, ok := b.(ir.Num); ok {
			return cmp.Compare(av, bv)
		}
	case ir.Str:
		if bv, ok := b.(ir.Str); ok {
			return strings.Compare(string(av), string(bv))
		}
	case ir.Bool:
		if bv, ok := b.(ir.Bool); ok {
			return cmp.Compare(boolRank(av), boolRank(bv))
		}
	case ir.Array:
		if bv, ok := b.(ir.Array); ok {
			for i := 0; i < min(len(av), len(bv)); i++ {
				if c := compareValues(av[i], bv[i]); c != 0 {
					return c
				}
			}
			return cmp.Compare(len(av), len(bv))
		}
	}
	if c := cmp.Compare(kindRank(a), kindRank(b)); c != 0 {
		return c
	}
	return strings.Compare(ir.ValueString(a), ir.ValueString(b))
}

func boolRank(b ir.Bool) int {
	if b {
		return 1
	}
	return 0
}

func kindRank(v ir.Value) int {
	switch v.(type) {
	case ir.Bool:
		return 0
	case ir.Num:
		return 1
	case ir.Str:
		return 2
	case ir.Array:
		return 3
	case ir.Object:
		return 4
	}
	return 5
}
