package domain_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opgraph/internal/cache"
	"github.com/roach88/opgraph/internal/coreops"
	"github.com/roach88/opgraph/internal/domain"
	"github.com/roach88/opgraph/internal/engine"
	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/listops"
	"github.com/roach88/opgraph/internal/ops"
	"github.com/roach88/opgraph/internal/testutil"
)

const dataset = `
projects:
  - name: mnist
    runs:
      - id: r1
        name: baseline
        summary: {loss: 0.12, epochs: 3}
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
        name: wide
        summary: {loss: 0.2, note: wider}
  - name: cifar
    runs:
      - id: r3
        name: resnet
`

type fixture struct {
	reg     *ops.Registry
	eng     *engine.Engine
	backend *testutil.Backend
}

func newFixture(t *testing.T, data string, opts ...engine.EngineOption) *fixture {
	t.Helper()
	reg := ops.NewRegistry(cache.New())
	require.NoError(t, coreops.Register(reg))
	require.NoError(t, listops.Register(reg))
	require.NoError(t, domain.Register(reg))
	b := testutil.MustParseBackend(data)
	return &fixture{reg: reg, eng: engine.New(reg, b, opts...), backend: b}
}

func (f *fixture) node(t *testing.T, name string, inputs ...ir.Input) *ir.Output {
	t.Helper()
	n, err := f.reg.New(name, inputs...)
	require.NoError(t, err)
	return n
}

func (f *fixture) exec(t *testing.T, n ir.Node) ir.Value {
	t.Helper()
	v, err := f.eng.Execute(t.Context(), n, nil)
	require.NoError(t, err)
	return v
}

func (f *fixture) refine(t *testing.T, n ir.Node) ir.Type {
	t.Helper()
	refined, err := f.eng.Refine(t.Context(), n, nil)
	require.NoError(t, err)
	return refined.NodeType()
}

func lit(v ir.Value) *ir.ConstNode { return ir.NewLiteral(v) }

func assertValue(t *testing.T, expected, actual ir.Value) {
	t.Helper()
	assert.True(t, ir.ValuesEqual(expected, actual), "expected %s, got %s", ir.ValueString(expected), ir.ValueString(actual))
}

func assertType(t *testing.T, expected, actual ir.Type) {
	t.Helper()
	assert.True(t, ir.TypesEqual(expected, actual), "expected %s, got %s", expected, actual)
}

var runTag = ir.NewDict(ir.P("run", ir.RunType))

func TestProjectRuns(t *testing.T) {
	f := newFixture(t, dataset)

	v := f.exec(t, f.node(t, "project-runs", ir.In("project", lit(ir.Str("mnist")))))
	assertValue(t, ir.Array{domain.RunRef("r1"), domain.RunRef("r2")}, v)

	v = f.exec(t, f.node(t, "project-runs", ir.In("project", lit(ir.Str("nope")))))
	assertValue(t, ir.Array{}, v)
}

func TestRunNameOverProjectRuns(t *testing.T) {
	f := newFixture(t, dataset)

	runs := f.node(t, "project-runs", ir.In("project", lit(ir.Str("mnist"))))
	names := f.node(t, "run-name", ir.In("run", runs))

	assertValue(t, ir.Array{ir.Str("baseline"), ir.Str("wide")}, f.exec(t, names))
	assertType(t, ir.NewList(ir.StringType), names.Type)
}

func TestRunFields(t *testing.T) {
	f := newFixture(t, dataset)
	r1 := lit(domain.RunRef("r1"))

	assertValue(t, ir.Str("r1"), f.exec(t, f.node(t, "run-id", ir.In("run", r1))))
	assertValue(t, ir.Str("mnist"), f.exec(t, f.node(t, "run-project", ir.In("run", r1))))
}

func TestUnknownRunIsAbsent(t *testing.T) {
	f := newFixture(t, dataset)

	v := f.exec(t, f.node(t, "run-name", ir.In("run", lit(domain.RunRef("missing")))))
	assert.True(t, ir.IsNull(v))
}

func TestRunSummaryIsTaggedWithRun(t *testing.T) {
	f := newFixture(t, dataset)
	r1 := domain.RunRef("r1")

	summary := f.node(t, "run-summary", ir.In("run", lit(r1)))
	v := f.exec(t, summary)
	assertValue(t, ir.WithTag(ir.Object{"run": r1}, ir.Object{"loss": ir.Num(0.12), "epochs": ir.Num(3)}), v)

	run := f.node(t, "tag-run", ir.In("obj", summary))
	assertValue(t, r1, f.exec(t, run))
}

func TestRunSummaryRefinement(t *testing.T) {
	f := newFixture(t, dataset)

	summary := f.node(t, "run-summary", ir.In("run", lit(domain.RunRef("r1"))))
	assertType(t, ir.NewTagged(runTag, ir.NewDict()), summary.Type)

	expected := ir.NewTagged(runTag, ir.NewDict(ir.P("epochs", ir.NumberType), ir.P("loss", ir.NumberType)))
	assertType(t, expected, f.refine(t, summary))
}

func TestRunSummaryRefinementOverRuns(t *testing.T) {
	f := newFixture(t, dataset)

	runs := f.node(t, "project-runs", ir.In("project", lit(ir.Str("mnist"))))
	summary := f.node(t, "run-summary", ir.In("run", runs))

	expected := ir.NewList(ir.NewTagged(runTag, ir.NewUnion(
		ir.NewDict(ir.P("epochs", ir.NumberType), ir.P("loss", ir.NumberType)),
		ir.NewDict(ir.P("loss", ir.NumberType), ir.P("note", ir.StringType)),
	)))
	assertType(t, expected, f.refine(t, summary))
}

func TestRunHistory(t *testing.T) {
	f := newFixture(t, dataset)
	r1 := domain.RunRef("r1")

	history := f.node(t, "run-history", ir.In("run", lit(r1)))
	v := f.exec(t, history)
	assertValue(t, ir.WithTag(ir.Object{"run": r1}, ir.Array{
		ir.Object{"step": ir.Num(0), "loss": ir.Num(0.9)},
		ir.Object{"step": ir.Num(1), "loss": ir.Num(0.5)},
	}), v)

	expected := ir.NewTagged(runTag, ir.NewList(ir.NewDict(ir.P("loss", ir.NumberType), ir.P("step", ir.NumberType))))
	assertType(t, expected, f.refine(t, history))
}

func TestRunHistoryRefinementIsBounded(t *testing.T) {
	var b strings.Builder
	b.WriteString("projects:\n  - name: p\n    runs:\n      - id: long\n        name: long\n        history:\n")
	for i := 0; i < 30; i++ {
		if i < 3 {
			fmt.Fprintf(&b, "          - {loss: %d}\n", i)
		} else {
			fmt.Fprintf(&b, "          - {loss: late}\n")
		}
	}
	f := newFixture(t, b.String(), engine.WithSampleLimit(3))

	history := f.node(t, "run-history", ir.In("run", lit(domain.RunRef("long"))))
	expected := ir.NewTagged(runTag, ir.NewList(ir.NewDict(ir.P("loss", ir.NumberType))))
	assertType(t, expected, f.refine(t, history))

	assert.Len(t, ir.Detag(f.exec(t, history)).(ir.Array), 30, "execution is not bounded")
}

func TestRunFile(t *testing.T) {
	f := newFixture(t, dataset)
	r1 := domain.RunRef("r1")

	file := f.node(t, "run-file", ir.In("run", lit(r1)), ir.In("path", lit(ir.Str("notes.txt"))))
	ref := ir.Ref{Kind: ir.NameFile, Digest: ir.ContentDigest([]byte("hello")), Path: "notes.txt"}
	assertValue(t, ir.WithTag(ir.Object{"run": r1}, ref), f.exec(t, file))

	contents := f.node(t, "file-contents", ir.In("file", file))
	assertValue(t, ir.WithTag(ir.Object{"run": r1}, ir.Str("hello")), f.exec(t, contents))

	size := f.node(t, "file-size", ir.In("file", file))
	assertValue(t, ir.WithTag(ir.Object{"run": r1}, ir.Num(5)), f.exec(t, size))
}

func TestRunFileMissingIsAbsent(t *testing.T) {
	f := newFixture(t, dataset)

	file := f.node(t, "run-file", ir.In("run", lit(domain.RunRef("r1"))), ir.In("path", lit(ir.Str("nope.txt"))))
	v := f.exec(t, file)
	assert.True(t, ir.IsNull(v), ir.ValueString(v))

	contents := f.node(t, "file-contents", ir.In("file", file))
	assert.True(t, ir.IsNull(f.exec(t, contents)))
}

func TestRunFiles(t *testing.T) {
	f := newFixture(t, dataset)

	files := f.node(t, "run-files", ir.In("run", lit(domain.RunRef("r1"))))
	paths := f.node(t, "file-path", ir.In("file", files))
	assertValue(t, ir.Str("metrics.json"), ir.Detag(f.exec(t, paths)).(ir.Array)[0])
}

func TestFileTable(t *testing.T) {
	f := newFixture(t, dataset)
	r1 := lit(domain.RunRef("r1"))

	metrics := f.node(t, "run-file", ir.In("run", r1), ir.In("path", lit(ir.Str("metrics.json"))))
	tbl := f.node(t, "file-table", ir.In("file", metrics))
	v := ir.Detag(f.exec(t, tbl))
	ref, ok := v.(ir.Ref)
	require.True(t, ok, ir.ValueString(v))
	assert.Equal(t, ir.NameTable, ref.Kind)

	rows := f.node(t, "table-rows", ir.In("table", tbl))
	assertValue(t, ir.Array{
		ir.Object{"step": ir.Num(0), "loss": ir.Num(0.9)},
		ir.Object{"step": ir.Num(1), "loss": ir.Num(0.5)},
	}, ir.Detag(f.exec(t, rows)))

	notes := f.node(t, "run-file", ir.In("run", r1), ir.In("path", lit(ir.Str("notes.txt"))))
	assert.True(t, ir.IsNull(f.exec(t, f.node(t, "file-table", ir.In("file", notes)))))
}

func TestFileTableRefinement(t *testing.T) {
	f := newFixture(t, dataset)
	metricsRef := ir.Ref{Kind: ir.NameFile, Path: "metrics.json"}
	for _, file := range ir.Detag(f.exec(t, f.node(t, "run-files", ir.In("run", lit(domain.RunRef("r1")))))).(ir.Array) {
		if ref := ir.Detag(file).(ir.Ref); ref.Path == "metrics.json" {
			metricsRef = ref
		}
	}
	notesRef := ir.Ref{Kind: ir.NameFile, Digest: ir.ContentDigest([]byte("hello")), Path: "notes.txt"}

	tbl := f.node(t, "file-table", ir.In("file", lit(metricsRef)))
	assertType(t, ir.NewMaybe(ir.TableType), tbl.Type)
	assertType(t, ir.TableType, f.refine(t, tbl))

	notTable := f.node(t, "file-table", ir.In("file", lit(notesRef)))
	assertType(t, ir.NoneType, f.refine(t, notTable))

	rows := f.node(t, "table-rows", ir.In("table", tbl))
	expected := ir.NewList(ir.NewDict(ir.P("step", ir.NumberType), ir.P("loss", ir.NumberType)))
	assertType(t, expected, f.refine(t, rows))
}

func TestFileTableIsParsedOnce(t *testing.T) {
	f := newFixture(t, dataset)
	r1 := lit(domain.RunRef("r1"))

	metrics := f.node(t, "run-file", ir.In("run", r1), ir.In("path", lit(ir.Str("metrics.json"))))
	rows := f.node(t, "table-rows", ir.In("table", f.node(t, "file-table", ir.In("file", metrics))))

	f.backend.ResetCalls()
	f.exec(t, rows)
	f.exec(t, rows)
	assert.Equal(t, 1, f.backend.ContentCalls(), "parsed tables are cached by digest")
}

func TestContentBackendErrorPropagates(t *testing.T) {
	f := newFixture(t, dataset)
	f.backend.ContentErr = assert.AnError

	ref := ir.Ref{Kind: ir.NameFile, Digest: ir.ContentDigest([]byte("hello")), Path: "notes.txt"}
	_, err := f.eng.Execute(t.Context(), f.node(t, "file-contents", ir.In("file", lit(ref))), nil)
	require.Error(t, err)
	assert.True(t, engine.IsBackendError(err))
	assert.ErrorIs(t, err, assert.AnError)
}
