package domain

import (
	"context"
	"fmt"

	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
	"github.com/roach88/opgraph/internal/queryir"
)

var runArg = []ops.Arg{{Name: "run", Type: ir.RunType}}

func runOps() []ops.Op {
	return []ops.Op{
		ops.LiftStandard(ops.Def{
			Name:        "run-id",
			Description: "id of a run",
			Args:        runArg,
			ReturnType:  constType(ir.StringType),
			Resolve: func(_ context.Context, _ *ops.Call, args ops.Args) (ir.Value, error) {
				ref, err := refArg(args, ir.NameRun)
				if err != nil {
					return nil, err
				}
				return ir.Str(ref.Digest), nil
			},
		}),
		runField("run-name", "name of a run", "name"),
		runField("run-project", "name of the project a run belongs to", "project"),
		ops.LiftTagging(ops.Def{
			Name:        "run-summary",
			Description: "summary dict of a run; keys are discovered by refinement",
			Args:        runArg,
			ReturnType:  constType(ir.NewDict()),
			Resolve:     resolveSummary,
			RefineVia:   "run-summaryType",
		}),
		ops.LiftStandard(ops.Def{
			Name:        "run-summaryType",
			Description: "type of a run's summary",
			Args:        runArg,
			ReturnType:  constType(ir.TypeType),
			Resolve: func(ctx context.Context, c *ops.Call, args ops.Args) (ir.Value, error) {
				summary, err := resolveSummary(ctx, c, args)
				if err != nil {
					return nil, err
				}
				return ir.TypeValue{T: ir.TypeOf(summary)}, nil
			},
		}),
		ops.LiftTagging(ops.Def{
			Name:        "run-history",
			Description: "logged history rows of a run in step order",
			Args:        runArg,
			ReturnType:  constType(ir.NewList(ir.NewDict())),
			Resolve: func(ctx context.Context, c *ops.Call, args ops.Args) (ir.Value, error) {
				return resolveHistory(ctx, c, args, 0)
			},
			RefineVia: "run-historyType",
		}),
		ops.LiftStandard(ops.Def{
			Name:        "run-historyType",
			Description: "type of a run's history, inferred from its first rows",
			Args:        runArg,
			ReturnType:  constType(ir.TypeType),
			Resolve: func(ctx context.Context, c *ops.Call, args ops.Args) (ir.Value, error) {
				rows, err := resolveHistory(ctx, c, args, c.SampleLimit)
				if err != nil {
					return nil, err
				}
				return ir.TypeValue{T: ir.NewList(unionOf(rows))}, nil
			},
		}),
	}
}

// runField fetches a string field of the run metadata.
func runField(name, desc, field string) ops.Op {
	return ops.LiftStandard(ops.Def{
		Name:        name,
		Description: desc,
		Args:        runArg,
		ReturnType:  constType(ir.StringType),
		Resolve: func(ctx context.Context, c *ops.Call, args ops.Args) (ir.Value, error) {
			meta, err := fetchRun(ctx, c, args)
			if err != nil {
				return nil, err
			}
			v, ok := meta[field]
			if !ok {
				return nil, ops.ErrAbsent
			}
			return v, nil
		},
	})
}

func fetchRun(ctx context.Context, c *ops.Call, args ops.Args) (ir.Object, error) {
	ref, err := refArg(args, ir.NameRun)
	if err != nil {
		return nil, err
	}
	b, err := backend(c)
	if err != nil {
		return nil, err
	}
	v, err := b.Fetch(ctx, ref)
	if err != nil {
		return nil, absentIfNotFound(err)
	}
	meta, ok := v.(ir.Object)
	if !ok {
		return nil, backendShapeError(v)
	}
	return meta, nil
}

func resolveSummary(ctx context.Context, c *ops.Call, args ops.Args) (ir.Value, error) {
	meta, err := fetchRun(ctx, c, args)
	if err != nil {
		return nil, err
	}
	summary, ok := meta["summary"].(ir.Object)
	if !ok {
		return ir.Object{}, nil
	}
	return summary, nil
}

// resolveHistory queries history rows in step order, at most limit rows
// when limit > 0.
func resolveHistory(ctx context.Context, c *ops.Call, args ops.Args, limit int) (ir.Array, error) {
	ref, err := refArg(args, ir.NameRun)
	if err != nil {
		return nil, err
	}
	b, err := backend(c)
	if err != nil {
		return nil, err
	}
	rows, err := b.Query(ctx, queryir.Select{
		From:     "history",
		Filter:   queryir.Equals{Field: "run_id", Value: ir.Str(ref.Digest)},
		Bindings: map[string]string{"row": "row"},
		OrderBy:  []string{"step"},
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}
	out := make(ir.Array, len(rows))
	for i, row := range rows {
		obj, _ := row.(ir.Object)
		v, ok := obj["row"]
		if !ok {
			return nil, backendShapeError(row)
		}
		out[i] = v
	}
	return out, nil
}

func backendShapeError(v ir.Value) error {
	return fmt.Errorf("unexpected backend result %s", ir.ValueString(v))
}
