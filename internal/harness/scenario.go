package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/opgraph/internal/store"
)

// DefaultQueryID is the query ID scenarios run under unless they set one.
const DefaultQueryID = "test-query"

// Scenario defines one expression evaluated against a seeded store.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Dataset is seeded into a fresh store before evaluation.
	Dataset store.Dataset `yaml:"dataset,omitempty"`

	// DatasetFile names a YAML dataset, relative to the scenario file.
	// It is seeded after Dataset.
	DatasetFile string `yaml:"dataset_file,omitempty"`

	// Expr is an inline CUE expression document.
	Expr string `yaml:"expr,omitempty"`

	// ExprFile names a .cue expression document, relative to the scenario
	// file. Exactly one of Expr and ExprFile is set.
	ExprFile string `yaml:"expr_file,omitempty"`

	// SampleLimit overrides the refinement sample size.
	SampleLimit int `yaml:"sample_limit,omitempty"`

	// QueryID is a fixed query ID for deterministic snapshots.
	// Defaults to DefaultQueryID.
	QueryID string `yaml:"query_id,omitempty"`

	// Assertions validate the result.
	Assertions []Assertion `yaml:"assertions"`

	// Path is the file the scenario was loaded from.
	Path string `yaml:"-"`
}

// Assertion types.
const (
	AssertValue    = "value"
	AssertType     = "type"
	AssertLength   = "length"
	AssertContains = "contains"
	AssertError    = "error"
)

// Assertion checks one property of a result.
type Assertion struct {
	// Type is the assertion type (value, type, length, contains, error).
	Type string `yaml:"type"`

	// Expect is the expected value for value and contains, and the
	// rendered type for type.
	Expect any `yaml:"expect,omitempty"`

	// Count is the expected list length for length.
	Count int `yaml:"count,omitempty"`

	// Code and Message match a failed evaluation for error.
	Code    string `yaml:"code,omitempty"`
	Message string `yaml:"message,omitempty"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath loads a scenario, resolving relative file
// references against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	scenario.Path = path

	if scenario.DatasetFile != "" && !filepath.IsAbs(scenario.DatasetFile) && basePath != "" {
		scenario.DatasetFile = filepath.Join(basePath, scenario.DatasetFile)
	}
	if scenario.ExprFile != "" && !filepath.IsAbs(scenario.ExprFile) && basePath != "" {
		scenario.ExprFile = filepath.Join(basePath, scenario.ExprFile)
	}

	if err := validateFiles(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes and validates a scenario. File references are
// left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding rejects typos in field names.
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	seen := make(map[string]string)
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if prev, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", path, s.Name, prev)
		}
		seen[s.Name] = path
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if (s.Expr == "") == (s.ExprFile == "") {
		return fmt.Errorf("exactly one of expr and expr_file is required")
	}

	if s.SampleLimit < 0 {
		return fmt.Errorf("sample_limit must be non-negative")
	}

	if err := s.Dataset.Validate(); err != nil {
		return fmt.Errorf("dataset: %w", err)
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateFiles(s *Scenario) error {
	for _, path := range []string{s.DatasetFile, s.ExprFile} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", path)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertValue, AssertContains:
		// A nil expect is a valid expectation of absence.
	case AssertType:
		if _, ok := a.Expect.(string); !ok {
			return fmt.Errorf("assertions[%d]: expect must be a type string for type", index)
		}
	case AssertLength:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for length", index)
		}
	case AssertError:
		if a.Code == "" && a.Message == "" {
			return fmt.Errorf("assertions[%d]: code or message is required for error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
