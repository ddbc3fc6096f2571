package harness

import (
	"context"
	"fmt"
)

// SuiteResult is the outcome of one scenario in a directory run.
type SuiteResult struct {
	Scenario *Scenario
	Result   *Result

	// Err is a setup failure that kept the scenario from running.
	Err error
}

// Passed reports whether the scenario ran and every assertion held.
func (r SuiteResult) Passed() bool {
	return r.Err == nil && r.Result != nil && r.Result.Pass
}

// SuiteError reports how many scenarios of a suite failed.
type SuiteError struct {
	Failed int
	Total  int
}

func (e *SuiteError) Error() string {
	return fmt.Sprintf("%d of %d scenarios failed", e.Failed, e.Total)
}

// RunDir loads every scenario in dir and runs them in file order. It
// returns a *SuiteError when any scenario fails; results are complete
// either way.
func RunDir(ctx context.Context, dir string) ([]SuiteResult, error) {
	scenarios, err := LoadScenarios(dir)
	if err != nil {
		return nil, err
	}
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("no scenarios found in %s", dir)
	}

	results := make([]SuiteResult, len(scenarios))
	failed := 0
	for i, s := range scenarios {
		if err := ctx.Err(); err != nil {
			return results[:i], err
		}
		result, err := Run(ctx, s)
		results[i] = SuiteResult{Scenario: s, Result: result, Err: err}
		if !results[i].Passed() {
			failed++
		}
	}
	if failed > 0 {
		return results, &SuiteError{Failed: failed, Total: len(scenarios)}
	}
	return results, nil
}
