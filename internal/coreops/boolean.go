package coreops

import (
	"context"

	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
)

func booleanOps() []ops.Op {
	return []ops.Op{
		binaryBoolean("boolean-and", "logical and", func(a, b bool) bool { return a && b }),
		binaryBoolean("boolean-or", "logical or", func(a, b bool) bool { return a || b }),
		ops.LiftStandard(ops.Def{
			Name:        "boolean-not",
			Description: "logical negation",
			Args:        []ops.Arg{{Name: "bool", Type: ir.BooleanType}},
			ReturnType:  constType(ir.BooleanType),
			Resolve: func(_ context.Context, _ *ops.Call, args ops.Args) (ir.Value, error) {
				b, err := boolArg(args, "bool")
				if err != nil {
					return nil, err
				}
				return ir.Bool(!b), nil
			},
		}),
	}
}

func binaryBoolean(name, desc string, f func(a, b bool) bool) ops.Op {
	return ops.LiftStandard(ops.Def{
		Name:        name,
		Description: desc,
		Args: []ops.Arg{
			{Name: "lhs", Type: ir.BooleanType},
			{Name: "rhs", Type: ir.BooleanType},
		},
		ReturnType: constType(ir.BooleanType),
		Resolve: func(_ context.Context, _ *ops.Call, args ops.Args) (ir.Value, error) {
			a, err := boolArg(args, "lhs")
			if err != nil {
				return nil, err
			}
			b, err := boolArg(args, "rhs")
			if err != nil {
				return nil, err
			}
			return ir.Bool(f(a, b)), nil
		},
	})
}
