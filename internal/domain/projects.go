package domain

import (
	"context"

	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
	"github.com/roach88/opgraph/internal/queryir"
)

func projectOps() []ops.Op {
	return []ops.Op{
		ops.LiftStandard(ops.Def{
			Name:        "project-runs",
			Description: "runs of a project in logging order",
			Args:        []ops.Arg{{Name: "project", Type: ir.StringType}},
			ReturnType:  constType(ir.NewList(ir.RunType)),
			Resolve: func(ctx context.Context, c *ops.Call, args ops.Args) (ir.Value, error) {
				name, err := stringArg(args, "project")
				if err != nil {
					return nil, err
				}
				b, err := backend(c)
				if err != nil {
					return nil, err
				}
				rows, err := b.Query(ctx, projectRunsQuery(name))
				if err != nil {
					return nil, err
				}
				return refsFromRows(rows, "id", ir.NameRun)
			},
		}),
	}
}

func projectRunsQuery(project string) queryir.Query {
	return queryir.Join{
		Left: queryir.Select{
			From:     "runs",
			Bindings: map[string]string{"runs.id": "id"},
			OrderBy:  []string{"runs.seq"},
		},
		Right: queryir.Select{
			From:     "projects",
			Filter:   queryir.Equals{Field: "projects.name", Value: ir.Str(project)},
			Bindings: map[string]string{"projects.name": "project"},
		},
		On: queryir.FieldEquals{Left: "runs.project_id", Right: "projects.id"},
	}
}

func refsFromRows(rows []ir.Value, key, kind string) (ir.Array, error) {
	out := make(ir.Array, 0, len(rows))
	for _, row := range rows {
		obj, _ := row.(ir.Object)
		id, ok := obj[key].(ir.Str)
		if !ok {
			return nil, backendShapeError(row)
		}
		out = append(out, ir.Ref{Kind: kind, Digest: string(id)})
	}
	return out, nil
}
