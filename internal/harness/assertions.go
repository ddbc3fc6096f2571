package harness

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/opgraph/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string

	// Diff is a structural diff of expected and actual values, if any.
	Diff string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Diff != "" {
		fmt.Fprintf(&buf, "\nDiff (-expected +actual):\n%s", e.Diff)
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns failure messages.
// An evaluation error fails the result unless an error assertion expects
// it.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	expectsError := false

	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertValue:
			err = assertValue(result, a)
		case AssertType:
			err = assertType(result, a)
		case AssertLength:
			err = assertLength(result, a)
		case AssertContains:
			err = assertContains(result, a)
		case AssertError:
			expectsError = true
			err = assertError(result, a)
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if result.Failed() && !expectsError {
		errs = append(errs, fmt.Sprintf("unexpected evaluation error: %s: %s", result.ErrorCode, result.ErrorMessage))
	}
	return errs
}

func assertValue(result *Result, a Assertion) error {
	if result.Failed() {
		return evalFailed(AssertValue, result)
	}
	expected, err := ir.FromGo(a.Expect)
	if err != nil {
		return fmt.Errorf("value assertion: invalid expect: %w", err)
	}
	// Expectations cannot spell tags, so a match on the detagged value
	// counts.
	if ir.ValuesEqual(expected, result.Value) || ir.ValuesEqual(expected, ir.DetagDeep(result.Value)) {
		return nil
	}
	return &AssertionError{
		Type:     AssertValue,
		Expected: ir.ValueString(expected),
		Actual:   ir.ValueString(result.Value),
		Diff:     ValueDiff(expected, result.Value),
	}
}

func assertType(result *Result, a Assertion) error {
	expected, _ := a.Expect.(string)
	if result.Type == expected {
		return nil
	}
	return &AssertionError{
		Type:     AssertType,
		Expected: expected,
		Actual:   result.Type,
		Diff:     cmp.Diff(expected, result.Type),
	}
}

func assertLength(result *Result, a Assertion) error {
	if result.Failed() {
		return evalFailed(AssertLength, result)
	}
	arr, ok := ir.Detag(result.Value).(ir.Array)
	if !ok {
		return &AssertionError{
			Type:     AssertLength,
			Expected: fmt.Sprintf("a list of %d elements", a.Count),
			Actual:   ir.ValueString(result.Value),
		}
	}
	if len(arr) != a.Count {
		return &AssertionError{
			Type:     AssertLength,
			Expected: fmt.Sprintf("%d elements", a.Count),
			Actual:   fmt.Sprintf("%d elements", len(arr)),
		}
	}
	return nil
}

func assertContains(result *Result, a Assertion) error {
	if result.Failed() {
		return evalFailed(AssertContains, result)
	}
	expected, err := ir.FromGo(a.Expect)
	if err != nil {
		return fmt.Errorf("contains assertion: invalid expect: %w", err)
	}
	arr, _ := ir.Detag(result.Value).(ir.Array)
	for _, elem := range arr {
		if ir.ValuesEqual(expected, elem) || ir.ValuesEqual(expected, ir.DetagDeep(elem)) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertContains,
		Expected: fmt.Sprintf("a list containing %s", ir.ValueString(expected)),
		Actual:   ir.ValueString(result.Value),
	}
}

func assertError(result *Result, a Assertion) error {
	if !result.Failed() {
		return &AssertionError{
			Type:     AssertError,
			Expected: fmt.Sprintf("error %s %q", a.Code, a.Message),
			Actual:   "success: " + ir.ValueString(result.Value),
		}
	}
	if a.Code != "" && a.Code != result.ErrorCode {
		return &AssertionError{
			Type:     AssertError,
			Expected: "code " + a.Code,
			Actual:   "code " + result.ErrorCode,
		}
	}
	if a.Message != "" && !strings.Contains(result.ErrorMessage, a.Message) {
		return &AssertionError{
			Type:     AssertError,
			Expected: fmt.Sprintf("message containing %q", a.Message),
			Actual:   result.ErrorMessage,
		}
	}
	return nil
}

func evalFailed(kind string, result *Result) error {
	return &AssertionError{
		Type:     kind,
		Expected: "successful evaluation",
		Actual:   fmt.Sprintf("%s: %s", result.ErrorCode, result.ErrorMessage),
	}
}

// ValueDiff renders a structural diff of two values through their
// canonical JSON form. Tags and references appear as their envelopes.
func ValueDiff(expected, actual ir.Value) string {
	return cmp.Diff(plain(expected), plain(actual))
}

func plain(v ir.Value) any {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return ir.ValueString(v)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return string(data)
	}
	return out
}
