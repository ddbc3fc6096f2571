// Package coreops provides the core operation library: arithmetic, string
// and boolean operations, absence checks, dict access, reducers and tag
// getters. Every operation is a core definition lifted by package ops.
package coreops

import (
	"fmt"

	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
)

// All returns every core operation.
func All() []ops.Op {
	var all []ops.Op
	all = append(all, numberOps()...)
	all = append(all, stringOps()...)
	all = append(all, booleanOps()...)
	all = append(all, generalOps()...)
	all = append(all, reducerOps()...)
	all = append(all, tagGetterOps()...)
	return all
}

// Register adds every core operation to r.
func Register(r *ops.Registry) error {
	return r.RegisterAll(All()...)
}

func constType(t ir.Type) ops.ReturnTypeFunc {
	return func(ops.ArgTypes) ir.Type { return t }
}

func numberArg(args ops.Args, name string) (float64, error) {
	v := args.Get(name)
	n, ok := v.(ir.Num)
	if !ok {
		return 0, fmt.Errorf("%w: %s expects a number, got %s", ops.ErrTypeMismatch, name, ir.ValueString(v))
	}
	return float64(n), nil
}

func stringArg(args ops.Args, name string) (string, error) {
	v := args.Get(name)
	s, ok := v.(ir.Str)
	if !ok {
		return "", fmt.Errorf("%w: %s expects a string, got %s", ops.ErrTypeMismatch, name, ir.ValueString(v))
	}
	return string(s), nil
}

func boolArg(args ops.Args, name string) (bool, error) {
	v := args.Get(name)
	b, ok := v.(ir.Bool)
	if !ok {
		return false, fmt.Errorf("%w: %s expects a boolean, got %s", ops.ErrTypeMismatch, name, ir.ValueString(v))
	}
	return bool(b), nil
}
