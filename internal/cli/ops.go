package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/opgraph/internal/oplib"
)

// OpInfo describes one registered operation.
type OpInfo struct {
	Name        string   `json:"name"`
	Variant     string   `json:"variant"`
	Args        []string `json:"args"`
	Description string   `json:"description"`
	RefineVia   string   `json:"refine_via,omitempty"`
}

// OpsResult is the output of the ops command.
type OpsResult struct {
	Ops []OpInfo `json:"ops"`
}

// Text renders one operation per line.
func (r OpsResult) Text() string {
	var b strings.Builder
	for i, op := range r.Ops {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%-22s %-14s (%s)  %s", op.Name, op.Variant, strings.Join(op.Args, ", "), op.Description)
	}
	return b.String()
}

// NewOpsCommand creates the ops command.
func NewOpsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ops [prefix]",
		Short: "List available operations",
		Long: `List the registered operations with their lifting variant and
arguments, optionally only those whose name starts with prefix.

Examples:
  opgraph ops
  opgraph ops run-
  opgraph ops --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			return runOps(cmd, rootOpts, prefix)
		},
	}
	return cmd
}

func runOps(cmd *cobra.Command, opts *RootOptions, prefix string) error {
	f := opts.formatter(cmd)

	reg, err := oplib.NewRegistry(nil)
	if err != nil {
		return report(f, ErrCodeStore, ExitCommandError, "failed to register operations", err, nil)
	}

	result := OpsResult{Ops: []OpInfo{}}
	for _, op := range reg.Ops() {
		if !strings.HasPrefix(op.Name(), prefix) {
			continue
		}
		args := make([]string, 0, len(op.ArgTypes()))
		for _, a := range op.ArgTypes() {
			args = append(args, a.Key+": "+a.Type.String())
		}
		result.Ops = append(result.Ops, OpInfo{
			Name:        op.Name(),
			Variant:     string(op.Variant()),
			Args:        args,
			Description: op.Description(),
			RefineVia:   op.RefineVia(),
		})
	}

	if len(result.Ops) == 0 {
		return report(f, ErrCodeNotFound, ExitFailure, fmt.Sprintf("no operations match %q", prefix), nil, nil)
	}
	return f.Success(result)
}
