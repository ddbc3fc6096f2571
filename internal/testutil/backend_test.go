package testutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
	"github.com/roach88/opgraph/internal/queryir"
)

const testData = `
projects:
  - name: mnist
    runs:
      - id: r1
        name: baseline
        summary: {loss: 0.1}
        history:
          - {loss: 0.9}
          - {loss: 0.5}
        files:
          - path: notes.txt
            content: hi
      - id: r2
        name: wide
`

func TestBackendFetchRun(t *testing.T) {
	b := MustParseBackend(testData)

	v, err := b.Fetch(t.Context(), ir.Ref{Kind: ir.NameRun, Digest: "r1"})
	require.NoError(t, err)
	assert.True(t, ir.ValuesEqual(ir.Object{
		"id":      ir.Str("r1"),
		"name":    ir.Str("baseline"),
		"project": ir.Str("mnist"),
		"summary": ir.Object{"loss": ir.Num(0.1)},
	}, v), ir.ValueString(v))
	assert.Equal(t, 1, b.FetchCalls())

	_, err = b.Fetch(t.Context(), ir.Ref{Kind: ir.NameRun, Digest: "nope"})
	assert.ErrorIs(t, err, ops.ErrNotFound)
}

func TestBackendContent(t *testing.T) {
	b := MustParseBackend(testData)
	digest := ir.ContentDigest([]byte("hi"))

	content, err := b.Content(t.Context(), ir.Ref{Kind: ir.NameFile, Digest: digest, Path: "notes.txt"})
	require.NoError(t, err)
	assert.Equal(t, "hi", string(content))
	assert.Equal(t, 1, b.ContentCalls())

	b.ContentErr = errors.New("boom")
	_, err = b.Content(t.Context(), ir.Ref{Kind: ir.NameFile, Digest: digest})
	assert.EqualError(t, err, "boom")
}

func TestBackendQueryHistory(t *testing.T) {
	b := MustParseBackend(testData)

	rows, err := b.Query(t.Context(), queryir.Select{
		From:     "history",
		Filter:   queryir.Equals{Field: "run_id", Value: ir.Str("r1")},
		Bindings: map[string]string{"row": "row"},
		OrderBy:  []string{"step"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, ir.ValuesEqual(ir.Object{"row": ir.Object{"loss": ir.Num(0.9)}}, rows[0]))
	assert.Equal(t, 1, b.QueryCalls())

	b.ResetCalls()
	assert.Equal(t, 0, b.QueryCalls())
}

func TestBackendQueryUnknownSource(t *testing.T) {
	b := NewBackend()

	_, err := b.Query(t.Context(), queryir.Select{From: "widgets", Bindings: map[string]string{"id": "id"}})
	assert.Error(t, err)
}
