package coreops

import (
	"context"
	"math"

	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
)

func numberOps() []ops.Op {
	return []ops.Op{
		binaryNumber("number-add", "adds two numbers", ir.NumberType, func(a, b float64) (ir.Value, error) {
			return ir.Num(a + b), nil
		}),
		binaryNumber("number-sub", "subtracts rhs from lhs", ir.NumberType, func(a, b float64) (ir.Value, error) {
			return ir.Num(a - b), nil
		}),
		binaryNumber("number-mul", "multiplies two numbers", ir.NumberType, func(a, b float64) (ir.Value, error) {
			return ir.Num(a * b), nil
		}),
		binaryNumber("number-div", "divides lhs by rhs; division by zero is absent", ir.NewMaybe(ir.NumberType), func(a, b float64) (ir.Value, error) {
			if b == 0 {
				return nil, ops.ErrAbsent
			}
			return ir.Num(a / b), nil
		}),
		binaryNumber("number-mod", "lhs modulo rhs; modulo zero is absent", ir.NewMaybe(ir.NumberType), func(a, b float64) (ir.Value, error) {
			if b == 0 {
				return nil, ops.ErrAbsent
			}
			return ir.Num(math.Mod(a, b)), nil
		}),
		binaryNumber("number-gt", "lhs > rhs", ir.BooleanType, func(a, b float64) (ir.Value, error) {
			return ir.Bool(a > b), nil
		}),
		binaryNumber("number-gte", "lhs >= rhs", ir.BooleanType, func(a, b float64) (ir.Value, error) {
			return ir.Bool(a >= b), nil
		}),
		binaryNumber("number-lt", "lhs < rhs", ir.BooleanType, func(a, b float64) (ir.Value, error) {
			return ir.Bool(a < b), nil
		}),
		binaryNumber("number-lte", "lhs <= rhs", ir.BooleanType, func(a, b float64) (ir.Value, error) {
			return ir.Bool(a <= b), nil
		}),
		unaryNumber("number-neg", "negates a number", func(a float64) float64 { return -a }),
		unaryNumber("number-floor", "rounds down", math.Floor),
	}
}

func binaryNumber(name, desc string, ret ir.Type, f func(a, b float64) (ir.Value, error)) ops.Op {
	return ops.LiftStandard(ops.Def{
		Name:        name,
		Description: desc,
		Args: []ops.Arg{
			{Name: "lhs", Type: ir.NumberType},
			{Name: "rhs", Type: ir.NumberType},
		},
		ReturnType: constType(ret),
		Resolve: func(_ context.Context, _ *ops.Call, args ops.Args) (ir.Value, error) {
			a, err := numberArg(args, "lhs")
			if err != nil {
				return nil, err
			}
			b, err := numberArg(args, "rhs")
			if err != nil {
				return nil, err
			}
			return f(a, b)
		},
	})
}

func unaryNumber(name, desc string, f func(float64) float64) ops.Op {
	return ops.LiftStandard(ops.Def{
		Name:        name,
		Description: desc,
		Args:        []ops.Arg{{Name: "val", Type: ir.NumberType}},
		ReturnType:  constType(ir.NumberType),
		Resolve: func(_ context.Context, _ *ops.Call, args ops.Args) (ir.Value, error) {
			a, err := numberArg(args, "val")
			if err != nil {
				return nil, err
			}
			return ir.Num(f(a)), nil
		},
	})
}
