package table

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opgraph/internal/cache"
	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/queryir"
)

type countingBackend struct {
	content map[string][]byte
	reads   int
}

func (b *countingBackend) Fetch(context.Context, ir.Ref) (ir.Value, error) { return ir.Null{}, nil }

func (b *countingBackend) Content(_ context.Context, ref ir.Ref) ([]byte, error) {
	b.reads++
	return b.content[ref.Digest], nil
}

func (b *countingBackend) Query(context.Context, queryir.Query) ([]ir.Value, error) { return nil, nil }

const sample = `{"columns": ["step", "loss"], "data": [[0, 0.9], [1, null], [2]]}`

func TestParse(t *testing.T) {
	tbl, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, []string{"step", "loss"}, tbl.Columns)
	require.Len(t, tbl.Data, 3)

	rows := tbl.Rows()
	assert.True(t, ir.ValuesEqual(ir.Object{"step": ir.Num(2), "loss": ir.Null{}}, rows[2]))

	rowType := tbl.RowType(10)
	expected := ir.NewDict(ir.P("step", ir.NumberType), ir.P("loss", ir.NewMaybe(ir.NumberType)))
	assert.True(t, ir.TypesEqual(expected, rowType), "got %s", rowType)

	first := tbl.RowType(1)
	assert.True(t, ir.TypesEqual(ir.NewDict(ir.P("step", ir.NumberType), ir.P("loss", ir.NumberType)), first))
}

func TestParseErrors(t *testing.T) {
	for _, content := range []string{`[]`, `{"data": []}`, `{"columns": [1]}`, `{"columns": ["a"], "data": [[1, 2]]}`, `nope`} {
		_, err := Parse([]byte(content))
		assert.Error(t, err, content)
	}
}

func TestEmptyTableDegrades(t *testing.T) {
	tbl, err := Parse([]byte(`{"columns": ["a"], "data": []}`))
	require.NoError(t, err)
	assert.True(t, ir.TypesEqual(ir.NewDict(), tbl.RowType(10)))
}

func TestLoadMemoizedByDigest(t *testing.T) {
	b := &countingBackend{content: map[string][]byte{"d1": []byte(sample)}}
	c := cache.New()
	ref := ir.Ref{Kind: "table", Digest: "d1"}

	first, err := Load(context.Background(), b, c, ref)
	require.NoError(t, err)
	second, err := Load(context.Background(), b, c, ref)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, b.reads)
}

func TestParseNotTable(t *testing.T) {
	for _, content := range []string{"hello", `[1, 2]`, `{"data": []}`, `{"columns": ["a"], "data": [[1, 2]]}`} {
		_, err := Parse([]byte(content))
		assert.ErrorIs(t, err, ErrNotTable, content)
	}
}
