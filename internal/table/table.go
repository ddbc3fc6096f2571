// Package table parses tabular file content and memoizes parsed tables in
// the injected cache, keyed by content digest.
//
// The content format is a JSON object with a column list and row-major
// data:
//
//	{"columns": ["step", "loss"], "data": [[0, 0.9], [1, 0.7]]}
package table

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/opgraph/internal/cache"
	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
)

// ErrNotTable marks content that does not parse as a table.
var ErrNotTable = errors.New("not a table")

// Table is a parsed table. Rows shorter than the column list are padded
// with Null.
type Table struct {
	Columns []string
	Data    [][]ir.Value
}

// Parse decodes table content.
func Parse(content []byte) (*Table, error) {
	v, err := ir.ParseJSON(content)
	if err != nil {
		return nil, fmt.Errorf("parse table: %w: %w", ErrNotTable, err)
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("parse table: %w: expected an object, got %s", ErrNotTable, ir.TypeOf(v))
	}

	cols, ok := obj["columns"].(ir.Array)
	if !ok {
		return nil, fmt.Errorf("parse table: %w: missing columns", ErrNotTable)
	}
	t := &Table{Columns: make([]string, len(cols))}
	for i, c := range cols {
		name, ok := c.(ir.Str)
		if !ok {
			return nil, fmt.Errorf("parse table: %w: column %d is not a string", ErrNotTable, i)
		}
		t.Columns[i] = string(name)
	}

	data, _ := obj["data"].(ir.Array)
	t.Data = make([][]ir.Value, len(data))
	for i, row := range data {
		cells, ok := row.(ir.Array)
		if !ok {
			return nil, fmt.Errorf("parse table: %w: row %d is not a list", ErrNotTable, i)
		}
		if len(cells) > len(t.Columns) {
			return nil, fmt.Errorf("parse table: %w: row %d has %d cells for %d columns", ErrNotTable, i, len(cells), len(t.Columns))
		}
		padded := make([]ir.Value, len(t.Columns))
		for j := range padded {
			if j < len(cells) {
				padded[j] = cells[j]
			} else {
				padded[j] = ir.Null{}
			}
		}
		t.Data[i] = padded
	}
	return t, nil
}

// Row returns row i as a dict keyed by column name.
func (t *Table) Row(i int) ir.Object {
	row := make(ir.Object, len(t.Columns))
	for j, col := range t.Columns {
		row[col] = t.Data[i][j]
	}
	return row
}

// Rows returns every row as a dict.
func (t *Table) Rows() ir.Array {
	out := make(ir.Array, len(t.Data))
	for i := range t.Data {
		out[i] = t.Row(i)
	}
	return out
}

// RowType unions the inferred types of the first limit rows. Property
// order follows the column order. An empty table degrades to an empty dict.
func (t *Table) RowType(limit int) ir.Type {
	n := len(t.Data)
	if limit > 0 && limit < n {
		n = limit
	}
	if n == 0 {
		return ir.NewDict()
	}
	props := make([]ir.Prop, len(t.Columns))
	for j, col := range t.Columns {
		members := make([]ir.Type, n)
		for i := 0; i < n; i++ {
			members[i] = ir.TypeOf(t.Data[i][j])
		}
		props[j] = ir.P(col, ir.NewUnion(members...))
	}
	return ir.NewDict(props...)
}

// Load fetches and parses the table behind ref. Parsed tables are cached
// by digest when c is non-nil.
func Load(ctx context.Context, b ops.Backend, c *cache.Cache, ref ir.Ref) (*Table, error) {
	load := func() (*Table, error) {
		if b == nil {
			return nil, fmt.Errorf("load table %s: no backend", ref.Digest)
		}
		content, err := b.Content(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("load table %s: %w", ref.Digest, err)
		}
		return Parse(content)
	}
	if c == nil {
		return load()
	}
	return cache.Load(c, cache.Key(cache.NamespaceTable, ref.Digest), load)
}
