package ir

// Binding is a variable bound in a stack frame. During refinement a binding
// may carry only a type; during execution (and sampled refinement) it also
// carries a value.
type Binding struct {
	Type     Type
	Value    Value
	HasValue bool
}

// TypeBinding binds a variable to a type only.
func TypeBinding(t Type) Binding {
	return Binding{Type: t}
}

// ValueBinding binds a variable to a concrete value and its type.
func ValueBinding(t Type, v Value) Binding {
	if t == nil {
		t = TypeOf(v)
	}
	return Binding{Type: t, Value: v, HasValue: true}
}

// Frame maps variable names to bindings.
type Frame map[string]Binding

// Stack is an immutable linked list of frames. The nil *Stack is the empty
// stack. Push never mutates the receiver, so stacks can be shared freely
// between concurrently evaluated elements.
type Stack struct {
	parent *Stack
	frame  Frame
	depth  int
}

// Push returns a new stack with frame on top.
func (s *Stack) Push(frame Frame) *Stack {
	return &Stack{parent: s, frame: frame, depth: s.Depth() + 1}
}

// Depth returns the number of frames.
func (s *Stack) Depth() int {
	if s == nil {
		return 0
	}
	return s.depth
}

// Lookup finds the innermost binding of name.
func (s *Stack) Lookup(name string) (Binding, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if b, ok := cur.frame[name]; ok {
			return b, true
		}
	}
	return Binding{}, false
}

// HasValues reports whether every binding visible for the given names
// carries a concrete value.
func (s *Stack) HasValues(names []string) bool {
	for _, name := range names {
		b, ok := s.Lookup(name)
		if !ok || !b.HasValue {
			return false
		}
	}
	return true
}
