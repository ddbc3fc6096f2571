package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDataset = `
projects:
  - name: mnist
    runs:
      - id: r1
        name: baseline
        summary: {loss: 0.12}
      - id: r2
        name: wide
        summary: {loss: 0.2}
`

const runNamesExpr = `
vars: project: "mnist"
expr: {
	op:  "map"
	arr: {op: "project-runs", project: {var: "project"}}
	mapFn: {fn: ["row"], body: {op: "run-name", run: {var: "row"}}}
}
`

const addExpr = `expr: {op: "number-add", lhs: 1, rhs: 2.5}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(t.Context(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestEvalCommand(t *testing.T) {
	dir := t.TempDir()
	expr := writeFile(t, dir, "add.cue", addExpr)

	code, stdout, stderr := execute(t, "eval", expr)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, "3.5\n", stdout)
}

func TestEvalCommandJSON(t *testing.T) {
	dir := t.TempDir()
	data := writeFile(t, dir, "data.yaml", testDataset)
	expr := writeFile(t, dir, "names.cue", runNamesExpr)

	code, stdout, stderr := execute(t, "--format", "json", "eval", "--data", data, expr)
	require.Equal(t, ExitSuccess, code, stderr)

	var resp struct {
		Status string     `json:"status"`
		Data   EvalResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Contains(t, string(resp.Data.Value), `"baseline"`)
	assert.Contains(t, string(resp.Data.Value), `"wide"`)
	assert.Contains(t, resp.Data.Type, "string")
}

func TestEvalCommandCompileError(t *testing.T) {
	dir := t.TempDir()
	expr := writeFile(t, dir, "bad.cue", `expr: {op: "number-add", lhs: 1, rhs: "x"}`)

	code, stdout, stderr := execute(t, "eval", expr)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "Error [E_COMPILE]")
	assert.Contains(t, stdout, "rhs")
	assert.Empty(t, stderr)
}

func TestEvalCommandEvaluationError(t *testing.T) {
	dir := t.TempDir()
	expr := writeFile(t, dir, "sort.cue", `expr: {
	op:  "sort"
	arr: [3, 1, 2]
	compFn: {fn: ["row"], body: {var: "row"}}
	columnDirs: ["sideways"]
}`)

	code, stdout, _ := execute(t, "--format", "json", "eval", expr)
	assert.Equal(t, ExitFailure, code)

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string           `json:"code"`
			Details EvalErrorDetails `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeEval, resp.Error.Code)
	assert.Equal(t, "TYPE_MISMATCH", resp.Error.Details.Code)
}

func TestEvalCommandMissingFile(t *testing.T) {
	code, stdout, _ := execute(t, "eval", filepath.Join(t.TempDir(), "nope.cue"))
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stdout, "Error [E_NOT_FOUND]")
}

func TestRefineCommand(t *testing.T) {
	dir := t.TempDir()
	expr := writeFile(t, dir, "add.cue", addExpr)

	code, stdout, stderr := execute(t, "refine", "--tree", expr)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "expr: number-add")
	assert.Contains(t, stdout, "  lhs: 1")
	assert.Contains(t, stdout, "  rhs: 2.5")
}

func TestOpsCommand(t *testing.T) {
	code, stdout, stderr := execute(t, "ops", "run-")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "run-name")
	assert.Contains(t, stdout, "run-history")
	assert.NotContains(t, stdout, "number-add")

	code, stdout, _ = execute(t, "--format", "json", "ops", "number-add")
	require.Equal(t, ExitSuccess, code)
	var resp struct {
		Data OpsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.NotEmpty(t, resp.Data.Ops)
	assert.Equal(t, "number-add", resp.Data.Ops[0].Name)
	assert.Len(t, resp.Data.Ops[0].Args, 2)

	code, _, _ = execute(t, "ops", "zzz-")
	assert.Equal(t, ExitFailure, code)
}

func TestSeedThenEval(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "runs.db")
	data := writeFile(t, dir, "data.yaml", testDataset)
	expr := writeFile(t, dir, "names.cue", runNamesExpr)

	code, stdout, stderr := execute(t, "--db", db, "seed", data)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "1 project(s), 2 run(s), 0 file(s)")

	code, stdout, stderr = execute(t, "--db", db, "eval", expr)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "baseline")
	assert.Contains(t, stdout, "wide")
}

func TestSeedCommandInvalidDataset(t *testing.T) {
	dir := t.TempDir()
	data := writeFile(t, dir, "data.yaml", "projects:\n  - runs: []\n")

	code, stdout, _ := execute(t, "--db", filepath.Join(dir, "runs.db"), "seed", data)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "invalid dataset")
}

const passingScenario = `
name: add
description: adds two numbers
expr: |
  expr: {op: "number-add", lhs: 1, rhs: 2.5}
assertions:
  - type: value
    expect: 3.5
`

const failingScenario = `
name: wrong
description: expects the wrong sum
expr: |
  expr: {op: "number-add", lhs: 1, rhs: 1}
assertions:
  - type: value
    expect: 3
`

func TestTestCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "add.yaml", passingScenario)

	code, stdout, stderr := execute(t, "test", dir)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "✓ add")
	assert.Contains(t, stdout, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommandFailures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "add.yaml", passingScenario)
	writeFile(t, dir, "wrong.yaml", failingScenario)

	code, stdout, _ := execute(t, "test", dir)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "✗ wrong")
	assert.Contains(t, stdout, "1 passed, 1 failed, 2 total")

	code, stdout, _ = execute(t, "--format", "json", "test", dir)
	assert.Equal(t, ExitFailure, code)
	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Failed)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeFailed, resp.Error.Code)
}

func TestTestCommandFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "add.yaml", passingScenario)
	writeFile(t, dir, "wrong.yaml", failingScenario)

	code, stdout, stderr := execute(t, "test", "--filter", "ad*", dir)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.NotContains(t, stdout, "wrong")
	assert.Contains(t, stdout, "1 total")
}

func TestTestCommandGolden(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "add.yaml", passingScenario)

	code, stdout, stderr := execute(t, "test", "--update", dir)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "(golden updated)")

	golden, err := os.ReadFile(goldenFilePath(dir, "add"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"query_id":"test-query","scenario_name":"add","value":3.5}`, string(golden))

	code, stdout, _ = execute(t, "test", dir)
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "(golden matched)")

	writeFile(t, dir, "golden/add.golden", `{"query_id":"test-query","scenario_name":"add","value":4}`)
	code, stdout, _ = execute(t, "test", dir)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "does not match golden file")
}

func TestTestCommandMissingDir(t *testing.T) {
	code, stdout, _ := execute(t, "test", filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stdout, "scenarios directory not found")
}
