package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/opgraph/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// Text renders one line per scenario and a summary.
func (r TestResult) Text() string {
	if r.Total == 0 {
		return "No scenarios found."
	}
	var b strings.Builder
	for _, s := range r.Scenarios {
		mark := "✓"
		if !s.Pass {
			mark = "✗"
		}
		fmt.Fprintf(&b, "%s %s", mark, s.Name)
		if s.Golden != "" {
			fmt.Fprintf(&b, " (golden %s)", s.Golden)
		}
		b.WriteByte('\n')
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "  %s\n", e)
		}
	}
	fmt.Fprintf(&b, "\nTest Summary: %d passed, %d failed, %d total", r.Passed, r.Failed, r.Total)
	if r.Failed == 0 {
		b.WriteString("\n✓ All scenarios passed")
	}
	return b.String()
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run expression scenarios",
		Long: `Run every *.yaml scenario in a directory against a fresh in-memory
store. Each scenario seeds its dataset, evaluates its expression and checks
its assertions. When <scenarios-dir>/golden/<name>.golden exists, the
result snapshot must also match it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  opgraph test ./scenarios
  opgraph test ./scenarios --filter "run-*"
  opgraph test ./scenarios --update
  opgraph test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by name (glob pattern)")

	return cmd
}

func runTests(cmd *cobra.Command, opts *TestOptions, dir string) error {
	f := opts.formatter(cmd)
	log := opts.logger()

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return report(f, ErrCodeNotFound, ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir), err, nil)
	}
	if opts.Filter != "" {
		if _, err := filepath.Match(opts.Filter, ""); err != nil {
			return report(f, ErrCodeNotFound, ExitCommandError, "invalid filter pattern", err, nil)
		}
	}

	scenarios, err := harness.LoadScenarios(dir)
	if err != nil {
		return report(f, ErrCodeNotFound, ExitCommandError, "failed to load scenarios", err, nil)
	}

	result := TestResult{Scenarios: []ScenarioResult{}}
	for _, s := range scenarios {
		if opts.Filter != "" {
			if ok, _ := filepath.Match(opts.Filter, s.Name); !ok {
				continue
			}
		}
		sr := runScenario(cmd, opts, dir, s)
		log.Debug("scenario finished", "name", s.Name, "pass", sr.Pass)
		result.Scenarios = append(result.Scenarios, sr)
		result.Total++
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if result.Failed > 0 {
		msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
		if f.Format == "json" {
			if err := f.encode(CLIResponse{
				Status: "error",
				Data:   result,
				Error:  &CLIError{Code: ErrCodeFailed, Message: msg},
			}); err != nil {
				return err
			}
		} else if err := f.Success(result); err != nil {
			return err
		}
		return &ExitError{Code: ExitFailure, Message: msg, Reported: true}
	}
	return f.Success(result)
}

// runScenario executes one scenario and checks or rewrites its golden file.
func runScenario(cmd *cobra.Command, opts *TestOptions, dir string, s *harness.Scenario) ScenarioResult {
	sr := ScenarioResult{Name: s.Name}

	result, err := harness.Run(cmd.Context(), s)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}
	sr.Errors = result.Errors

	snapshot, err := harness.NewSnapshot(s.Name, result).MarshalCanonical()
	if err != nil {
		sr.Errors = append(sr.Errors, fmt.Sprintf("failed to marshal snapshot: %v", err))
		return sr
	}

	path := goldenFilePath(dir, s.Name)
	switch {
	case opts.Update:
		if err := writeGolden(path, snapshot); err != nil {
			sr.Errors = append(sr.Errors, fmt.Sprintf("failed to update golden file: %v", err))
			return sr
		}
		sr.Golden = "updated"
	default:
		match, found, err := compareGolden(path, snapshot)
		switch {
		case err != nil:
			sr.Errors = append(sr.Errors, fmt.Sprintf("golden comparison failed: %v", err))
			return sr
		case found && !match:
			sr.Errors = append(sr.Errors, "result does not match golden file (run with --update to regenerate)")
			return sr
		case found:
			sr.Golden = "matched"
		}
	}

	sr.Pass = result.Pass
	return sr
}

// goldenFilePath returns the golden file for a scenario name.
func goldenFilePath(dir, name string) string {
	return filepath.Join(dir, "golden", name+".golden")
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// compareGolden reports whether the golden file at path holds data. A
// missing file is not an error.
func compareGolden(path string, data []byte) (match, found bool, err error) {
	fh, err := os.Open(path)
	if os.IsNotExist(err) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	defer fh.Close()

	golden, err := io.ReadAll(fh)
	if err != nil {
		return false, true, err
	}
	return bytes.Equal(bytes.TrimRight(golden, "\n"), data), true, nil
}
