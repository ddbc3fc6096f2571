package listops

import (
	"context"
	"fmt"

	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
	"github.com/roach88/opgraph/internal/table"
)

// The row type of a table is only known after reading it, so table-rows
// is refined by executing table-rowsType on a sample of its input.
func tableRowsOp() ops.Op {
	return ops.LiftStandard(ops.Def{
		Name:        "table-rows",
		Description: "rows of a table as dicts keyed by column",
		Args:        []ops.Arg{{Name: "table", Type: ir.TableType}},
		ReturnType:  func(ops.ArgTypes) ir.Type { return ir.NewList(ir.NewDict()) },
		Resolve: func(ctx context.Context, c *ops.Call, args ops.Args) (ir.Value, error) {
			t, err := loadTable(ctx, c, args.First())
			if err != nil {
				return nil, err
			}
			return t.Rows(), nil
		},
		RefineVia: "table-rowsType",
	})
}

func tableRowsTypeOp() ops.Op {
	return ops.LiftStandard(ops.Def{
		Name:        "table-rowsType",
		Description: "type of table-rows for a table, inferred from sampled rows",
		Args:        []ops.Arg{{Name: "table", Type: ir.TableType}},
		ReturnType:  func(ops.ArgTypes) ir.Type { return ir.TypeType },
		Resolve: func(ctx context.Context, c *ops.Call, args ops.Args) (ir.Value, error) {
			t, err := loadTable(ctx, c, args.First())
			if err != nil {
				return nil, err
			}
			return ir.TypeValue{T: ir.NewList(t.RowType(c.SampleLimit))}, nil
		},
	})
}

func loadTable(ctx context.Context, c *ops.Call, v ir.Value) (*table.Table, error) {
	ref, ok := v.(ir.Ref)
	if !ok || ref.Kind != ir.NameTable {
		return nil, fmt.Errorf("%w: expected a table reference, got %s", ops.ErrTypeMismatch, ir.ValueString(v))
	}
	return table.Load(ctx, c.Backend, c.Cache, ref)
}
