package ir

import "fmt"

// Node is a sealed interface over expression graph nodes.
// Only *Output, *ConstNode and *VarNode implement it.
//
// Nodes are immutable. Identity matters: the forward graph and the
// refinement driver memoize by node pointer.
type Node interface {
	NodeType() Type
	irNode() // Sealed
}

// Input is a named operation input. Inputs keep declaration order, which
// downstream query-shape generation relies on.
type Input struct {
	Name string
	Node Node
}

// Inputs is an ordered list of named inputs.
type Inputs []Input

// In is a shorthand for Input.
func In(name string, n Node) Input {
	return Input{Name: name, Node: n}
}

// Get returns the input with the given name.
func (in Inputs) Get(name string) (Node, bool) {
	for _, i := range in {
		if i.Name == name {
			return i.Node, true
		}
	}
	return nil, false
}

// Names returns input names in order.
func (in Inputs) Names() []string {
	names := make([]string, len(in))
	for i, input := range in {
		names[i] = input.Name
	}
	return names
}

// Output is an operation application.
type Output struct {
	Type   Type
	OpName string
	Inputs Inputs
}

func (*Output) irNode()          {}
func (n *Output) NodeType() Type { return n.Type }

// WithType returns a copy of the node with a different type.
func (n *Output) WithType(t Type) *Output {
	return &Output{Type: t, OpName: n.OpName, Inputs: n.Inputs}
}

// WithInputs returns a copy of the node with different inputs.
func (n *Output) WithInputs(inputs Inputs) *Output {
	return &Output{Type: n.Type, OpName: n.OpName, Inputs: inputs}
}

// ConstNode is a literal value.
type ConstNode struct {
	Type Type
	Val  Value
}

func (*ConstNode) irNode()          {}
func (n *ConstNode) NodeType() Type { return n.Type }

// VarNode references a variable bound in an enclosing stack frame.
type VarNode struct {
	Name string
	Type Type
}

func (*VarNode) irNode()          {}
func (n *VarNode) NodeType() Type { return n.Type }

// NewOutput creates an operation application node.
func NewOutput(t Type, opName string, inputs Inputs) *Output {
	return &Output{Type: t, OpName: opName, Inputs: inputs}
}

// NewConstNode creates a literal node with an inferred type.
func NewConstNode(v Value) *ConstNode {
	return &ConstNode{Type: TypeOf(v), Val: v}
}

// NewLiteral creates a literal node whose type is Const, so operations
// that depend on a literal argument (dict keys, join aliases) can see its
// value at construction time.
func NewLiteral(v Value) *ConstNode {
	return &ConstNode{Type: NewConst(nil, v), Val: v}
}

// NewTypedConstNode creates a literal node with an explicit type.
func NewTypedConstNode(t Type, v Value) *ConstNode {
	return &ConstNode{Type: t, Val: v}
}

// NewVar creates a variable reference node.
func NewVar(name string, t Type) *VarNode {
	return &VarNode{Name: name, Type: t}
}

// NewFn creates a function literal node. The function's output type is the
// body's current type.
func NewFn(params []Prop, body Node) *ConstNode {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Key
	}
	return &ConstNode{
		Type: NewFunction(params, body.NodeType()),
		Val:  FuncValue{Params: names, Body: body},
	}
}

// IsFnNode reports whether n is a function literal.
func IsFnNode(n Node) bool {
	c, ok := n.(*ConstNode)
	if !ok {
		return false
	}
	_, ok = c.Val.(FuncValue)
	return ok
}

// WalkNodes visits n and every node reachable from it, including function
// bodies, in depth-first pre-order. Returning false from visit prunes the
// subtree.
func WalkNodes(n Node, visit func(Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	switch nn := n.(type) {
	case *Output:
		for _, in := range nn.Inputs {
			WalkNodes(in.Node, visit)
		}
	case *ConstNode:
		if fn, ok := nn.Val.(FuncValue); ok {
			WalkNodes(fn.Body, visit)
		}
	}
}

// FreeVars returns the names of variables referenced by n that are not
// bound by a function literal inside n.
func FreeVars(n Node) []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(n Node, bound map[string]bool)
	walk = func(n Node, bound map[string]bool) {
		switch nn := n.(type) {
		case *VarNode:
			if !bound[nn.Name] && !seen[nn.Name] {
				seen[nn.Name] = true
				out = append(out, nn.Name)
			}
		case *Output:
			for _, in := range nn.Inputs {
				walk(in.Node, bound)
			}
		case *ConstNode:
			fn, ok := nn.Val.(FuncValue)
			if !ok {
				return
			}
			inner := make(map[string]bool, len(bound)+len(fn.Params))
			for k := range bound {
				inner[k] = true
			}
			for _, p := range fn.Params {
				inner[p] = true
			}
			walk(fn.Body, inner)
		}
	}
	walk(n, map[string]bool{})
	return out
}

// NodeString renders a node as a compact expression for logs and errors.
func NodeString(n Node) string {
	switch nn := n.(type) {
	case *Output:
		s := nn.OpName + "("
		for i, in := range nn.Inputs {
			if i > 0 {
				s += ", "
			}
			s += in.Name + "=" + NodeString(in.Node)
		}
		return s + ")"
	case *ConstNode:
		if fn, ok := nn.Val.(FuncValue); ok {
			return fmt.Sprintf("fn(%v) => %s", fn.Params, NodeString(fn.Body))
		}
		return ValueString(nn.Val)
	case *VarNode:
		return nn.Name
	case nil:
		return "<nil>"
	}
	return fmt.Sprintf("<%T>", n)
}
