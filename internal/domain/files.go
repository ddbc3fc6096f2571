package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
	"github.com/roach88/opgraph/internal/queryir"
	"github.com/roach88/opgraph/internal/table"
)

var fileArg = []ops.Arg{{Name: "file", Type: ir.FileType}}

func fileOps() []ops.Op {
	return []ops.Op{
		ops.LiftTagging(ops.Def{
			Name:        "run-file",
			Description: "file logged by a run under path, or none",
			Args: []ops.Arg{
				{Name: "run", Type: ir.RunType},
				{Name: "path", Type: ir.StringType},
			},
			ReturnType: constType(ir.NewMaybe(ir.FileType)),
			Resolve:    resolveRunFile,
		}),
		ops.LiftTagging(ops.Def{
			Name:        "run-files",
			Description: "files logged by a run, ordered by path",
			Args:        runArg,
			ReturnType:  constType(ir.NewList(ir.FileType)),
			Resolve:     resolveRunFiles,
		}),
		ops.LiftStandard(ops.Def{
			Name:        "file-path",
			Description: "path of a file",
			Args:        fileArg,
			ReturnType:  constType(ir.StringType),
			Resolve: func(_ context.Context, _ *ops.Call, args ops.Args) (ir.Value, error) {
				ref, err := refArg(args, ir.NameFile)
				if err != nil {
					return nil, err
				}
				return ir.Str(ref.Path), nil
			},
		}),
		ops.LiftStandard(ops.Def{
			Name:        "file-size",
			Description: "size of a file in bytes",
			Args:        fileArg,
			ReturnType:  constType(ir.NumberType),
			Resolve: func(ctx context.Context, c *ops.Call, args ops.Args) (ir.Value, error) {
				ref, err := refArg(args, ir.NameFile)
				if err != nil {
					return nil, err
				}
				b, err := backend(c)
				if err != nil {
					return nil, err
				}
				meta, err := b.Fetch(ctx, ref)
				if err != nil {
					return nil, absentIfNotFound(err)
				}
				obj, _ := meta.(ir.Object)
				size, ok := obj["size"].(ir.Num)
				if !ok {
					return nil, backendShapeError(meta)
				}
				return size, nil
			},
		}),
		ops.LiftStandard(ops.Def{
			Name:        "file-contents",
			Description: "contents of a file as a string",
			Args:        fileArg,
			ReturnType:  constType(ir.StringType),
			Resolve: func(ctx context.Context, c *ops.Call, args ops.Args) (ir.Value, error) {
				ref, err := refArg(args, ir.NameFile)
				if err != nil {
					return nil, err
				}
				b, err := backend(c)
				if err != nil {
					return nil, err
				}
				content, err := b.Content(ctx, ref)
				if err != nil {
					return nil, err
				}
				return ir.Str(content), nil
			},
		}),
		ops.LiftStandard(ops.Def{
			Name:        "file-table",
			Description: "the file parsed as a table, or none if it is not one",
			Args:        fileArg,
			ReturnType:  constType(ir.NewMaybe(ir.TableType)),
			Resolve: func(ctx context.Context, c *ops.Call, args ops.Args) (ir.Value, error) {
				ref, err := loadFileTable(ctx, c, args)
				if err != nil {
					return nil, err
				}
				return ref, nil
			},
			RefineVia: "file-tableType",
		}),
		ops.LiftStandard(ops.Def{
			Name:        "file-tableType",
			Description: "table if the file parses as one, none otherwise",
			Args:        fileArg,
			ReturnType:  constType(ir.TypeType),
			Resolve: func(ctx context.Context, c *ops.Call, args ops.Args) (ir.Value, error) {
				_, err := loadFileTable(ctx, c, args)
				if errors.Is(err, ops.ErrAbsent) {
					return ir.TypeValue{T: ir.NoneType}, nil
				}
				if err != nil {
					return nil, err
				}
				return ir.TypeValue{T: ir.TableType}, nil
			},
		}),
	}
}

func resolveRunFile(ctx context.Context, c *ops.Call, args ops.Args) (ir.Value, error) {
	ref, err := refArg(args, ir.NameRun)
	if err != nil {
		return nil, err
	}
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	files, err := queryFiles(ctx, c, queryir.And{Predicates: []queryir.Predicate{
		queryir.Equals{Field: "run_id", Value: ir.Str(ref.Digest)},
		queryir.Equals{Field: "path", Value: ir.Str(path)},
	}})
	if err != nil {
		return nil, absentIfNotFound(err)
	}
	if len(files) == 0 {
		return nil, ops.ErrAbsent
	}
	return files[0], nil
}

func resolveRunFiles(ctx context.Context, c *ops.Call, args ops.Args) (ir.Value, error) {
	ref, err := refArg(args, ir.NameRun)
	if err != nil {
		return nil, err
	}
	return queryFiles(ctx, c, queryir.Equals{Field: "run_id", Value: ir.Str(ref.Digest)})
}

func queryFiles(ctx context.Context, c *ops.Call, filter queryir.Predicate) (ir.Array, error) {
	b, err := backend(c)
	if err != nil {
		return nil, err
	}
	rows, err := b.Query(ctx, queryir.Select{
		From:     "files",
		Filter:   filter,
		Bindings: map[string]string{"path": "path", "digest": "digest"},
		OrderBy:  []string{"path"},
	})
	if err != nil {
		return nil, err
	}
	out := make(ir.Array, len(rows))
	for i, row := range rows {
		obj, _ := row.(ir.Object)
		path, pok := obj["path"].(ir.Str)
		digest, dok := obj["digest"].(ir.Str)
		if !pok || !dok {
			return nil, backendShapeError(row)
		}
		out[i] = ir.Ref{Kind: ir.NameFile, Digest: string(digest), Path: string(path)}
	}
	return out, nil
}

// loadFileTable parses the file as a table through the parsed-table
// cache and returns the table reference. Content that is not a table is
// absent.
func loadFileTable(ctx context.Context, c *ops.Call, args ops.Args) (ir.Ref, error) {
	ref, err := refArg(args, ir.NameFile)
	if err != nil {
		return ir.Ref{}, err
	}
	b, err := backend(c)
	if err != nil {
		return ir.Ref{}, err
	}
	tref := ir.Ref{Kind: ir.NameTable, Digest: ref.Digest, Path: ref.Path}
	if _, err := table.Load(ctx, b, c.Cache, tref); err != nil {
		if errors.Is(err, table.ErrNotTable) {
			return ir.Ref{}, ops.ErrAbsent
		}
		return ir.Ref{}, fmt.Errorf("file-table %s: %w", ref.Path, err)
	}
	return tref, nil
}
