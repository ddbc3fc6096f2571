package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/opgraph/internal/ir"
)

// RefineResult is the output of the refine command.
type RefineResult struct {
	Type  string     `json:"type"`
	Nodes []NodeInfo `json:"nodes,omitempty"`
}

// NodeInfo is one node of a refined expression.
type NodeInfo struct {
	Depth int    `json:"depth"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// Text renders the output type, then the node tree if present.
func (r RefineResult) Text() string {
	var b strings.Builder
	b.WriteString(r.Type)
	for _, n := range r.Nodes {
		fmt.Fprintf(&b, "\n%s%s :: %s", strings.Repeat("  ", n.Depth), n.Label, n.Type)
	}
	return b.String()
}

// NewRefineCommand creates the refine command.
func NewRefineCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}
	var tree bool

	cmd := &cobra.Command{
		Use:   "refine <expr.cue>",
		Short: "Print the refined type of an expression document",
		Long: `Compile a CUE expression document and refine its output type against
the data, without executing the whole expression. Operations whose types
depend on data sample at most --sample-limit elements.

Examples:
  opgraph refine --data runs.yaml expr.cue
  opgraph refine --db ./runs.db --tree expr.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefine(cmd, opts, args[0], tree)
		},
	}

	addEvalFlags(cmd, opts)
	cmd.Flags().BoolVar(&tree, "tree", false, "print every node with its refined type")
	return cmd
}

func runRefine(cmd *cobra.Command, opts *EvalOptions, path string, tree bool) error {
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

	refined, err := s.engine.Refine(ctx, doc.Expr, doc.Stack())
	if err != nil {
		return reportEval(f, "refinement failed", err)
	}

	result := RefineResult{Type: refined.NodeType().String()}
	if tree {
		result.Nodes = nodeTree(refined, 0, "expr", nil)
	}
	return f.Success(result)
}

// nodeTree flattens a node and its inputs in pre-order.
func nodeTree(n ir.Node, depth int, name string, out []NodeInfo) []NodeInfo {
	switch nn := n.(type) {
	case *ir.Output:
		out = append(out, NodeInfo{Depth: depth, Label: name + ": " + nn.OpName, Type: nn.Type.String()})
		for _, in := range nn.Inputs {
			out = nodeTree(in.Node, depth+1, in.Name, out)
		}
	case *ir.ConstNode:
		if fn, ok := nn.Val.(ir.FuncValue); ok {
			out = append(out, NodeInfo{Depth: depth, Label: fmt.Sprintf("%s: fn(%s)", name, strings.Join(fn.Params, ", ")), Type: nn.Type.String()})
			return nodeTree(fn.Body, depth+1, "body", out)
		}
		out = append(out, NodeInfo{Depth: depth, Label: name + ": " + ir.ValueString(nn.Val), Type: nn.Type.String()})
	case *ir.VarNode:
		out = append(out, NodeInfo{Depth: depth, Label: name + ": $" + nn.Name, Type: nn.Type.String()})
	}
	return out
}
