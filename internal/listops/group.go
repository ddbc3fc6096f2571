package listops

import (
	"context"

	"github.com/roach88/opgraph/internal/coreops"
	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
)

// SafeKey turns a grouping or join key into a string. References are
// replaced by their digest so content never becomes a map key, tags are
// stripped, and the rest is canonically serialized.
func SafeKey(v ir.Value) (string, error) {
	data, err := ir.MarshalCanonical(refsToDigests(ir.DetagDeep(v)))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func refsToDigests(v ir.Value) ir.Value {
	switch vv := v.(type) {
	case ir.Ref:
		return ir.Str(vv.Digest)
	case ir.Array:
		out := make(ir.Array, len(vv))
		for i, e := range vv {
			out[i] = refsToDigests(e)
		}
		return out
	case ir.Object:
		out := make(ir.Object, len(vv))
		for k, e := range vv {
			out[k] = refsToDigests(e)
		}
		return out
	}
	return v
}

func groupByOp() ops.Op {
	return ops.NewRaw(ops.Def{
		Name:        "groupby",
		Description: "groups elements by groupByFn(row) in first-seen key order",
		Args: []ops.Arg{
			{Name: "arr", Type: listArg},
			{Name: "groupByFn", Type: fnArg},
		},
		ReturnType: func(in ops.ArgTypes) ir.Type {
			keyType := fnOutput(in.Get("groupByFn"))
			return overListType(in.Get("arr"), func(_ ir.Type, l ir.List) ir.Type {
				group := ir.NewTagged(ir.NewDict(ir.P(coreops.TagGroupKey, keyType)), ir.NewListBounded(l.Object, 1, -1))
				return ir.NewList(group)
			})
		},
		Resolve: func(ctx context.Context, c *ops.Call, args ops.Args) (ir.Value, error) {
			fn, err := funcArg(args, "groupByFn")
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

				var order []string
				raw := make(map[string]ir.Value)
				members := make(map[string]ir.Array)
				for i, key := range keys {
					sk, err := SafeKey(key)
					if err != nil {
						return nil, err
					}
					if _, seen := members[sk]; !seen {
						order = append(order, sk)
						raw[sk] = key
					}
					members[sk] = append(members[sk], arr[i])
				}

				out := make(ir.Array, len(order))
				for i, sk := range order {
					out[i] = ir.WithTag(ir.Object{coreops.TagGroupKey: raw[sk]}, members[sk])
				}
				return out, nil
			})
		},
		FunctionInputs: map[string]ops.FunctionInputsFunc{"groupByFn": rowInputs("arr")},
		FunctionRows:   map[string]string{"groupByFn": "arr"},
	})
}
