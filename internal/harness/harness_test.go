package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opgraph/internal/ir"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRunScenarios(t *testing.T) {
	for _, name := range []string{"run_names", "metrics_rows", "missing_file", "compile_error"} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(t.Context(), loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Equal(t, DefaultQueryID, result.QueryID)
		})
	}
}

func TestRunRecordsRefinedType(t *testing.T) {
	result, err := Run(t.Context(), loadTestScenario(t, "run_names"))
	require.NoError(t, err)
	assert.Contains(t, result.Type, "string")
}

func TestRunGolden(t *testing.T) {
	for _, name := range []string{"run_names", "compile_error"} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRunEvaluationErrorCode(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: bad_sort
description: an invalid sort direction fails the resolver
expr: |
  expr: {
  	op:  "sort"
  	arr: [3, 1, 2]
  	compFn: {fn: ["row"], body: {var: "row"}}
  	columnDirs: ["sideways"]
  }
assertions:
  - type: error
    code: TYPE_MISMATCH
    message: sideways
`))
	require.NoError(t, err)

	result, err := Run(t.Context(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Nil(t, result.Value)
}

func TestRunFailingAssertion(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong
description: a deliberately wrong expectation
expr: 'expr: {op: "number-mul", lhs: 6, rhs: 7}'
assertions:
  - type: value
    expect: 41
  - type: type
    expect: number
`))
	require.NoError(t, err)

	result, err := Run(t.Context(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Expected: 41")
	assert.True(t, ir.ValuesEqual(ir.Num(42), result.Value))
}

func TestRunSampleLimitAndQueryID(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: limited
description: sample limit and query id are applied
query_id: fixed-42
sample_limit: 1
dataset:
  projects:
    - name: p
      runs:
        - id: r1
          name: one
          history:
            - {a: 1}
            - {b: "x"}
expr: 'expr: {op: "run-history", run: {ref: {kind: "run", digest: "r1"}}}'
assertions:
  - type: length
    count: 2
`))
	require.NoError(t, err)

	result, err := Run(t.Context(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "fixed-42", result.QueryID)
	assert.Contains(t, result.Type, "a: number")
	assert.NotContains(t, result.Type, "b: string")
}

func TestRunDir(t *testing.T) {
	results, err := RunDir(t.Context(), filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, r := range results {
		assert.True(t, r.Passed(), "%s: %v", r.Scenario.Name, r.Result.Errors)
	}
}

func TestRunDirReportsFailures(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("a.yaml", "name: a\ndescription: d\nexpr: 'expr: 1'\nassertions: [{type: value, expect: 1}]\n")
	write("b.yaml", "name: b\ndescription: d\nexpr: 'expr: 1'\nassertions: [{type: value, expect: 2}]\n")

	results, err := RunDir(t.Context(), dir)
	require.Error(t, err)
	var serr *SuiteError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 1, serr.Failed)
	assert.Equal(t, 2, serr.Total)
	require.Len(t, results, 2)
	assert.True(t, results[0].Passed())
	assert.False(t, results[1].Passed())

	_, err = RunDir(t.Context(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scenarios found")
}
