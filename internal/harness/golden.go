package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/opgraph/internal/ir"
)

// Snapshot is the deterministic part of a result, stored in golden files.
type Snapshot struct {
	ScenarioName string
	QueryID      string
	Value        ir.Value
	ErrorCode    string
}

// NewSnapshot captures a result.
func NewSnapshot(name string, result *Result) Snapshot {
	return Snapshot{
		ScenarioName: name,
		QueryID:      result.QueryID,
		Value:        result.Value,
		ErrorCode:    result.ErrorCode,
	}
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s Snapshot) MarshalCanonical() ([]byte, error) {
	obj := ir.Object{
		"scenario_name": ir.Str(s.ScenarioName),
		"query_id":      ir.Str(s.QueryID),
	}
	if s.ErrorCode != "" {
		obj["error"] = ir.Str(s.ErrorCode)
	} else {
		v := s.Value
		if v == nil {
			v = ir.Null{}
		}
		obj["value"] = v
	}
	return ir.MarshalCanonical(obj)
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(t.Context(), scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(scenarioName, result).MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
