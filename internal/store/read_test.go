package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
	"github.com/roach88/opgraph/internal/queryir"
)

const testDataset = `
projects:
  - name: mnist
    runs:
      - id: r1
        name: baseline
        summary: {loss: 0.12, tags: [cnn]}
        history:
          - {step: 0, loss: 0.9}
          - {step: 1, loss: 0.5}
        files:
          - path: notes.txt
            content: hello
          - path: metrics.json
            table:
              columns: [step, loss]
              data: [[0, 0.9], [1, 0.5]]
      - id: r2
        name: wider
  - id: p-cifar
    name: cifar
    runs:
      - id: r3
        name: resnet
`

func seededStore(t *testing.T) *Store {
	t.Helper()
	s := openTestStore(t)
	ds, err := ParseDataset([]byte(testDataset))
	require.NoError(t, err)
	require.NoError(t, s.Seed(t.Context(), ds))
	return s
}

func TestFetchRun(t *testing.T) {
	s := seededStore(t)

	v, err := s.Fetch(t.Context(), ir.Ref{Kind: ir.NameRun, Digest: "r1"})
	require.NoError(t, err)

	expected := ir.Object{
		"id":      ir.Str("r1"),
		"name":    ir.Str("baseline"),
		"project": ir.Str("mnist"),
		"summary": ir.Object{"loss": ir.Num(0.12), "tags": ir.Array{ir.Str("cnn")}},
	}
	assert.True(t, ir.ValuesEqual(expected, v), "got %s", ir.ValueString(v))
}

func TestFetchRunDefaultSummary(t *testing.T) {
	s := seededStore(t)

	v, err := s.Fetch(t.Context(), ir.Ref{Kind: ir.NameRun, Digest: "r2"})
	require.NoError(t, err)
	assert.True(t, ir.ValuesEqual(ir.Object{}, v.(ir.Object)["summary"]))
}

func TestFetchNotFound(t *testing.T) {
	s := seededStore(t)

	_, err := s.Fetch(t.Context(), ir.Ref{Kind: ir.NameRun, Digest: "missing"})
	assert.ErrorIs(t, err, ops.ErrNotFound)

	_, err = s.Fetch(t.Context(), ir.Ref{Kind: "widget", Digest: "x"})
	assert.ErrorIs(t, err, ops.ErrNotFound)
}

func TestFetchFileAndContent(t *testing.T) {
	s := seededStore(t)
	digest := ir.ContentDigest([]byte("hello"))
	ref := ir.Ref{Kind: ir.NameFile, Digest: digest, Path: "notes.txt"}

	meta, err := s.Fetch(t.Context(), ref)
	require.NoError(t, err)
	assert.True(t, ir.ValuesEqual(ir.Object{
		"path":   ir.Str("notes.txt"),
		"digest": ir.Str(digest),
		"size":   ir.Num(5),
	}, meta))

	content, err := s.Content(t.Context(), ref)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	_, err = s.Content(t.Context(), ir.Ref{Kind: ir.NameFile, Digest: "nope"})
	assert.ErrorIs(t, err, ops.ErrNotFound)
}

func TestTableFileIsCanonicalJSON(t *testing.T) {
	s := seededStore(t)

	rows, err := s.Query(t.Context(), queryir.Select{
		From:     "files",
		Filter:   queryir.Equals{Field: "path", Value: ir.Str("metrics.json")},
		Bindings: map[string]string{"digest": "digest"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	digest := string(rows[0].(ir.Object)["digest"].(ir.Str))
	content, err := s.Content(t.Context(), ir.Ref{Kind: ir.NameTable, Digest: digest})
	require.NoError(t, err)
	assert.Equal(t, `{"columns":["step","loss"],"data":[[0,0.9],[1,0.5]]}`, string(content))
}

func TestQueryHistoryDecodesRows(t *testing.T) {
	s := seededStore(t)

	rows, err := s.Query(t.Context(), queryir.Select{
		From:     "history",
		Filter:   queryir.Equals{Field: "run_id", Value: ir.Str("r1")},
		Bindings: map[string]string{"row": "row", "step": "step"},
		OrderBy:  []string{"step"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.True(t, ir.ValuesEqual(ir.Object{
		"step": ir.Num(0),
		"row":  ir.Object{"step": ir.Num(0), "loss": ir.Num(0.9)},
	}, rows[0]))
	assert.True(t, ir.ValuesEqual(ir.Num(1), rows[1].(ir.Object)["step"]))
}

func TestQueryLimit(t *testing.T) {
	s := seededStore(t)

	rows, err := s.Query(t.Context(), queryir.Select{
		From:     "history",
		Filter:   queryir.Equals{Field: "run_id", Value: ir.Str("r1")},
		Bindings: map[string]string{"step": "step"},
		OrderBy:  []string{"step"},
		Limit:    1,
	})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestQueryProjectRunsJoin(t *testing.T) {
	s := seededStore(t)

	rows, err := s.Query(t.Context(), queryir.Join{
		Left: queryir.Select{
			From:     "runs",
			Bindings: map[string]string{"runs.id": "id"},
			OrderBy:  []string{"runs.seq"},
		},
		Right: queryir.Select{
			From:     "projects",
			Filter:   queryir.Equals{Field: "projects.name", Value: ir.Str("mnist")},
			Bindings: map[string]string{"projects.name": "project"},
		},
		On: queryir.FieldEquals{Left: "runs.project_id", Right: "projects.id"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, ir.ValuesEqual(ir.Object{"id": ir.Str("r1"), "project": ir.Str("mnist")}, rows[0]))
	assert.True(t, ir.ValuesEqual(ir.Object{"id": ir.Str("r2"), "project": ir.Str("mnist")}, rows[1]))
}

func TestQueryInvalid(t *testing.T) {
	s := seededStore(t)

	_, err := s.Query(t.Context(), queryir.Select{From: "runs; DROP TABLE runs", Bindings: map[string]string{"id": "id"}})
	assert.Error(t, err)
}

func TestStoreImplementsBackend(t *testing.T) {
	var _ ops.Backend = seededStore(t)
}
