// Package domain provides operations over projects, runs, run history,
// files and tables. They read through the backend collaborator, and the
// types of their results are discovered by refinement: run summaries,
// history rows and file tables are only known after looking at data.
//
// Runs, files and tables are references (ir.Ref). Operations whose
// results need provenance are tagging operations, so every history row
// and file remembers the run it came from under the "run" tag.
package domain

import (
	"errors"
	"fmt"

	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
)

// All returns every domain operation.
func All() []ops.Op {
	var all []ops.Op
	all = append(all, projectOps()...)
	all = append(all, runOps()...)
	all = append(all, fileOps()...)
	return all
}

// Register adds every domain operation to r.
func Register(r *ops.Registry) error {
	return r.RegisterAll(All()...)
}

// RunRef returns the reference of the run with the given id.
func RunRef(id string) ir.Ref {
	return ir.Ref{Kind: ir.NameRun, Digest: id}
}

func constType(t ir.Type) ops.ReturnTypeFunc {
	return func(ops.ArgTypes) ir.Type { return t }
}

func refArg(args ops.Args, kind string) (ir.Ref, error) {
	v := args.First()
	ref, ok := v.(ir.Ref)
	if !ok || ref.Kind != kind {
		return ir.Ref{}, fmt.Errorf("%w: expected a %s, got %s", ops.ErrTypeMismatch, kind, ir.ValueString(v))
	}
	return ref, nil
}

func stringArg(args ops.Args, name string) (string, error) {
	v := args.Get(name)
	s, ok := v.(ir.Str)
	if !ok {
		return "", fmt.Errorf("%w: %s expects a string, got %s", ops.ErrTypeMismatch, name, ir.ValueString(v))
	}
	return string(s), nil
}

func backend(c *ops.Call) (ops.Backend, error) {
	if c.Backend == nil {
		return nil, errors.New("no backend configured")
	}
	return c.Backend, nil
}

// absentIfNotFound turns a backend not-found error into absence.
func absentIfNotFound(err error) error {
	if errors.Is(err, ops.ErrNotFound) {
		return ops.ErrAbsent
	}
	return err
}

// unionOf unions the inferred types of values. No values degrades to an
// empty dict.
func unionOf(values []ir.Value) ir.Type {
	if len(values) == 0 {
		return ir.NewDict()
	}
	members := make([]ir.Type, len(values))
	for i, v := range values {
		members[i] = ir.TypeOf(v)
	}
	return ir.NewUnion(members...)
}
