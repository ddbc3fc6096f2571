package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/opgraph/internal/compiler"
	"github.com/roach88/opgraph/internal/engine"
	"github.com/roach88/opgraph/internal/ir"
)

// EvalResult is the output of the eval command.
type EvalResult struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Text renders the value as canonical JSON.
func (r EvalResult) Text() string {
	return string(r.Value)
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}
	var noRefine bool

	cmd := &cobra.Command{
		Use:   "eval <expr.cue>",
		Short: "Evaluate an expression document",
		Long: `Compile a CUE expression document, refine its types against the data,
execute it and print the result as canonical JSON.

Exit codes:
  0 - Success
  1 - Compile or evaluation error
  2 - Command error (missing files, unusable database)

Examples:
  opgraph eval --data runs.yaml expr.cue
  opgraph eval --db ./runs.db --format json expr.cue
  opgraph eval --db ./runs.db --sample-limit 3 -v expr.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd, opts, args[0], !noRefine)
		},
	}

	addEvalFlags(cmd, opts)
	cmd.Flags().BoolVar(&noRefine, "no-refine", false, "execute without refining types first")
	return cmd
}

func addEvalFlags(cmd *cobra.Command, opts *EvalOptions) {
	cmd.Flags().StringVar(&opts.DataFile, "data", "", "YAML dataset to seed before evaluating")
	cmd.Flags().IntVar(&opts.SampleLimit, "sample-limit", engine.DefaultSampleLimit, "list elements inspected by refinement")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", engine.DefaultConcurrency, "sibling nodes evaluated at once")
}

func runEval(cmd *cobra.Command, opts *EvalOptions, path string, refine bool) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()

	s, err := openSession(ctx, opts)
	if err != nil {
		return reportSetup(f, err)
	}
	defer s.Close()

	doc, err := s.compile(path)
	if err != nil {
		return reportSetup(f, err)
	}

	node := doc.Expr
	if refine {
		node, err = s.engine.Refine(ctx, doc.Expr, doc.Stack())
		if err != nil {
			return reportEval(f, "refinement failed", err)
		}
	}

	v, err := s.engine.Execute(ctx, node, doc.Stack())
	if err != nil {
		return reportEval(f, "evaluation failed", err)
	}

	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return reportEval(f, "result is not serializable", err)
	}
	return f.Success(EvalResult{Type: node.NodeType().String(), Value: data})
}

// CompileErrorDetails lists the problems of a document that failed to
// compile.
type CompileErrorDetails struct {
	Problems []string `json:"problems"`
}

// Text renders one problem per line.
func (d CompileErrorDetails) Text() string {
	return "  " + strings.Join(d.Problems, "\n  ")
}

// EvalErrorDetails describes a failed evaluation.
type EvalErrorDetails struct {
	Code   string `json:"code"`
	OpName string `json:"op,omitempty"`
}

// Text renders the code and failing operation.
func (d EvalErrorDetails) Text() string {
	if d.OpName == "" {
		return "Code: " + d.Code
	}
	return fmt.Sprintf("Code: %s (op %s)", d.Code, d.OpName)
}

// reportSetup writes a session or compile failure.
func reportSetup(f *OutputFormatter, err error) error {
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		return report(f, ErrCodeStore, ExitCommandError, "setup failed", err, nil)
	}
	var ce *compiler.CompileError
	if errors.As(exitErr.Err, &ce) {
		var problems []string
		for _, e := range compiler.Errors(exitErr.Err) {
			problems = append(problems, e.Error())
		}
		_ = f.Error(ErrCodeCompile, exitErr.Message, CompileErrorDetails{Problems: problems})
		exitErr.Reported = true
		return exitErr
	}
	code := ErrCodeStore
	if exitErr.Code == ExitCommandError && strings.Contains(exitErr.Message, "not found") {
		code = ErrCodeNotFound
	}
	_ = f.Error(code, exitErr.Error(), nil)
	exitErr.Reported = true
	return exitErr
}

func reportEval(f *OutputFormatter, message string, err error) error {
	details := EvalErrorDetails{Code: "ERROR"}
	var ee *engine.EvalError
	if errors.As(err, &ee) {
		details = EvalErrorDetails{Code: string(ee.Code), OpName: ee.OpName}
	}
	return report(f, ErrCodeEval, ExitFailure, message, err, details)
}
