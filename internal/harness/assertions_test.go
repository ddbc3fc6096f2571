package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opgraph/internal/ir"
)

func okResult(v ir.Value) *Result {
	r := NewResult("q")
	r.Value = v
	r.Type = "list<string>"
	return r
}

func failedResult(code, msg string) *Result {
	r := NewResult("q")
	r.ErrorCode = code
	r.ErrorMessage = msg
	return r
}

func TestEvaluateAssertionsPass(t *testing.T) {
	tagged := ir.WithTag(ir.Object{"run": ir.Ref{Kind: ir.NameRun, Digest: "r1"}}, ir.Array{ir.Str("a"), ir.Str("b")})

	errs := EvaluateAssertions(okResult(tagged), []Assertion{
		{Type: AssertValue, Expect: []any{"a", "b"}},
		{Type: AssertType, Expect: "list<string>"},
		{Type: AssertLength, Count: 2},
		{Type: AssertContains, Expect: "b"},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertionsValueMismatchHasDiff(t *testing.T) {
	errs := EvaluateAssertions(okResult(ir.Object{"loss": ir.Num(0.5)}), []Assertion{
		{Type: AssertValue, Expect: map[string]any{"loss": 0.25}},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Assertion failed: value")
	assert.Contains(t, errs[0], "-expected +actual")
	assert.Contains(t, errs[0], "0.25")
}

func TestEvaluateAssertionsFailures(t *testing.T) {
	result := okResult(ir.Array{ir.Str("a")})
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{"type", Assertion{Type: AssertType, Expect: "number"}, "Expected: number"},
		{"length", Assertion{Type: AssertLength, Count: 3}, "3 elements"},
		{"contains", Assertion{Type: AssertContains, Expect: "z"}, `a list containing "z"`},
		{"error on success", Assertion{Type: AssertError, Code: "BACKEND"}, "success"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(result, []Assertion{tt.assertion})
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.want)
		})
	}
}

func TestEvaluateAssertionsLengthOfScalar(t *testing.T) {
	errs := EvaluateAssertions(okResult(ir.Num(1)), []Assertion{{Type: AssertLength, Count: 1}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "a list of 1 elements")
}

func TestEvaluateAssertionsErrors(t *testing.T) {
	result := failedResult("BACKEND", "backend run-name: disk on fire")

	assert.Empty(t, EvaluateAssertions(result, []Assertion{{Type: AssertError, Code: "BACKEND", Message: "disk"}}))

	errs := EvaluateAssertions(result, []Assertion{{Type: AssertError, Code: "RESOLVER"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "code RESOLVER")

	errs = EvaluateAssertions(result, []Assertion{{Type: AssertError, Message: "flood"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `message containing "flood"`)
}

func TestEvaluateAssertionsUnexpectedError(t *testing.T) {
	errs := EvaluateAssertions(failedResult("RESOLVER", "boom"), []Assertion{{Type: AssertValue, Expect: 1}})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "successful evaluation")
	assert.Contains(t, errs[1], "unexpected evaluation error: RESOLVER: boom")
}

func TestValueDiff(t *testing.T) {
	assert.Empty(t, ValueDiff(ir.Array{ir.Num(1)}, ir.Array{ir.Num(1)}))
	assert.NotEmpty(t, ValueDiff(ir.Array{ir.Num(1)}, ir.Array{ir.Num(2)}))
}
