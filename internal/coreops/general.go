package coreops

import (
	"context"
	"fmt"

	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
)

func generalOps() []ops.Op {
	return []ops.Op{
		ops.LiftBasic(ops.Def{
			Name:        "isNone",
			Description: "reports whether a value is absent",
			Args:        []ops.Arg{{Name: "val", Type: ir.AnyType}},
			ReturnType:  constType(ir.BooleanType),
			NullsToCore: true,
			Resolve: func(_ context.Context, _ *ops.Call, args ops.Args) (ir.Value, error) {
				return ir.Bool(ir.IsNull(args.First())), nil
			},
		}),
		equality("equal", "structural equality of detagged values", false),
		equality("notEqual", "structural inequality of detagged values", true),
		ops.LiftStandard(ops.Def{
			Name:        "pick",
			Description: "returns the value stored under key; tags on the dict are kept",
			Args: []ops.Arg{
				{Name: "obj", Type: ir.NewDict()},
				{Name: "key", Type: ir.StringType},
			},
			ReturnType: pickType,
			Resolve: func(_ context.Context, _ *ops.Call, args ops.Args) (ir.Value, error) {
				obj, ok := args.First().(ir.Object)
				if !ok {
					return nil, fmt.Errorf("%w: pick expects a dict, got %s", ops.ErrTypeMismatch, ir.ValueString(args.First()))
				}
				key, err := stringArg(args, "key")
				if err != nil {
					return nil, err
				}
				v, found := obj[key]
				if !found {
					return nil, ops.ErrAbsent
				}
				return v, nil
			},
		}),
		ops.LiftStandard(ops.Def{
			Name:        "keys",
			Description: "keys of a dict in canonical order",
			Args:        []ops.Arg{{Name: "obj", Type: ir.NewDict()}},
			ReturnType:  constType(ir.NewList(ir.StringType)),
			Resolve: func(_ context.Context, _ *ops.Call, args ops.Args) (ir.Value, error) {
				obj, ok := args.First().(ir.Object)
				if !ok {
					return nil, fmt.Errorf("%w: keys expects a dict, got %s", ops.ErrTypeMismatch, ir.ValueString(args.First()))
				}
				keys := obj.SortedKeys()
				out := make(ir.Array, len(keys))
				for i, k := range keys {
					out[i] = ir.Str(k)
				}
				return out, nil
			},
		}),
	}
}

func equality(name, desc string, negate bool) ops.Op {
	return ops.LiftEqual(ops.Def{
		Name:        name,
		Description: desc,
		Args: []ops.Arg{
			{Name: "lhs", Type: ir.AnyType},
			{Name: "rhs", Type: ir.AnyType},
		},
		ReturnType: constType(ir.BooleanType),
		Resolve: func(_ context.Context, _ *ops.Call, args ops.Args) (ir.Value, error) {
			eq := ir.ValuesEqual(ir.DetagDeep(args.Get("lhs")), ir.DetagDeep(args.Get("rhs")))
			return ir.Bool(eq != negate), nil
		},
	})
}

// pickType resolves a literal key against the dict type. A non-literal key
// may name any property, or none.
func pickType(in ops.ArgTypes) ir.Type {
	dict, ok := in.Get("obj").(ir.TypedDict)
	if !ok {
		return ir.AnyType
	}
	if c, ok := in.Get("key").(ir.Const); ok {
		if key, ok := c.Val.(ir.Str); ok {
			if t, found := dict.Lookup(string(key)); found {
				return t
			}
			return ir.NoneType
		}
	}
	members := make([]ir.Type, 0, len(dict.Props)+1)
	for _, p := range dict.Props {
		members = append(members, p.Type)
	}
	return ir.NewMaybe(ir.NewUnion(members...))
}
