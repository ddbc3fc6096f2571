package coreops

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
)

func stringOps() []ops.Op {
	return []ops.Op{
		ops.LiftStandard(ops.Def{
			Name:        "string-len",
			Description: "number of characters",
			Args:        []ops.Arg{{Name: "str", Type: ir.StringType}},
			ReturnType:  constType(ir.NumberType),
			Resolve: func(_ context.Context, _ *ops.Call, args ops.Args) (ir.Value, error) {
				s, err := stringArg(args, "str")
				if err != nil {
					return nil, err
				}
				return ir.Num(utf8.RuneCountInString(s)), nil
			},
		}),
		unaryString("string-upper", "upper-cases a string", strings.ToUpper),
		unaryString("string-lower", "lower-cases a string", strings.ToLower),
		ops.LiftStandard(ops.Def{
			Name:        "string-append",
			Description: "appends suffix to str",
			Args: []ops.Arg{
				{Name: "str", Type: ir.StringType},
				{Name: "suffix", Type: ir.StringType},
			},
			ReturnType: constType(ir.StringType),
			Resolve: func(_ context.Context, _ *ops.Call, args ops.Args) (ir.Value, error) {
				s, err := stringArg(args, "str")
				if err != nil {
					return nil, err
				}
				suffix, err := stringArg(args, "suffix")
				if err != nil {
					return nil, err
				}
				return ir.Str(s + suffix), nil
			},
		}),
		ops.LiftStandard(ops.Def{
			Name:        "string-contains",
			Description: "reports whether str contains sub",
			Args: []ops.Arg{
				{Name: "str", Type: ir.StringType},
				{Name: "sub", Type: ir.StringType},
			},
			ReturnType: constType(ir.BooleanType),
			Resolve: func(_ context.Context, _ *ops.Call, args ops.Args) (ir.Value, error) {
				s, err := stringArg(args, "str")
				if err != nil {
					return nil, err
				}
				sub, err := stringArg(args, "sub")
				if err != nil {
					return nil, err
				}
				return ir.Bool(strings.Contains(s, sub)), nil
			},
		}),
	}
}

func unaryString(name, desc string, f func(string) string) ops.Op {
	return ops.LiftStandard(ops.Def{
		Name:        name,
		Description: desc,
		Args:        []ops.Arg{{Name: "str", Type: ir.StringType}},
		ReturnType:  constType(ir.StringType),
		Resolve: func(_ context.Context, _ *ops.Call, args ops.Args) (ir.Value, error) {
			s, err := stringArg(args, "str")
			if err != nil {
				return nil, err
			}
			return ir.Str(f(s)), nil
		},
	})
}
