package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
	"github.com/roach88/opgraph/internal/queryir"
	"github.com/roach88/opgraph/internal/querysql"
)

// Fetch returns the metadata of a run or file reference.
//
// Runs resolve to {id, name, project, summary}. Files resolve to
// {path, digest, size}. Unknown references return ops.ErrNotFound.
func (s *Store) Fetch(ctx context.Context, ref ir.Ref) (ir.Value, error) {
	switch ref.Kind {
	case ir.NameRun:
		return s.fetchRun(ctx, ref.Digest)
	case ir.NameFile, ir.NameTable:
		return s.fetchFile(ctx, ref)
	}
	return nil, fmt.Errorf("fetch %s %s: %w", ref.Kind, ref.Digest, ops.ErrNotFound)
}

func (s *Store) fetchRun(ctx context.Context, id string) (ir.Value, error) {
	var name, project, summary string
	err := s.db.QueryRowContext(ctx, `
		SELECT runs.name, projects.name, runs.summary
		FROM runs INNER JOIN projects ON runs.project_id = projects.id
		WHERE runs.id = ?
	`, id).Scan(&name, &project, &summary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fetch run %s: %w", id, ops.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch run %s: %w", id, err)
	}

	sum, err := unmarshalValue(summary)
	if err != nil {
		return nil, fmt.Errorf("fetch run %s: %w", id, err)
	}
	return ir.Object{
		"id":      ir.Str(id),
		"name":    ir.Str(name),
		"project": ir.Str(project),
		"summary": sum,
	}, nil
}

func (s *Store) fetchFile(ctx context.Context, ref ir.Ref) (ir.Value, error) {
	var size int64
	err := s.db.QueryRowContext(ctx, `
		SELECT size FROM files
		WHERE digest = ? AND path = ?
		ORDER BY id ASC
		LIMIT 1
	`, ref.Digest, ref.Path).Scan(&size)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fetch file %s: %w", ref.Path, ops.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch file %s: %w", ref.Path, err)
	}
	return ir.Object{
		"path":   ir.Str(ref.Path),
		"digest": ir.Str(ref.Digest),
		"size":   ir.Num(size),
	}, nil
}

// Content returns the blob addressed by the reference's digest.
func (s *Store) Content(ctx context.Context, ref ir.Ref) ([]byte, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx, `SELECT content FROM blobs WHERE digest = ?`, ref.Digest).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("content %s: %w", ref.Digest, ops.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("content %s: %w", ref.Digest, err)
	}
	return content, nil
}

// Query compiles q to SQL and returns one object per row, keyed by the
// query's result keys. Rows come back in the compiled ORDER BY order.
func (s *Store) Query(ctx context.Context, q queryir.Query) ([]ir.Value, error) {
	query, params, err := s.compiler.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("compile query: %w", err)
	}
	cols := querysql.Columns(q)

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []ir.Value
	for rows.Next() {
		cells := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(ir.Object, len(cols))
		for i, col := range cols {
			v, err := columnValue(unqualified(col.Field), cells[i])
			if err != nil {
				return nil, err
			}
			row[col.Key] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func unqualified(field string) string {
	if i := strings.LastIndexByte(field, '.'); i >= 0 {
		return field[i+1:]
	}
	return field
}
