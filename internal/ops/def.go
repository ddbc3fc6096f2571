// Package ops defines operations and the lifting factory that turns a core
// definition (written against present, untagged scalars) into an operation
// usable anywhere in an expression graph.
//
// A core definition declares its arguments, a core return type and a core
// resolver. One of the Lift constructors wraps it in an algebra.Plan so the
// lifted return type and the lifted resolver are projections of the same
// plan. Only the first argument is projected through the plan; the others
// are detagged and, unless the variant handles nulls itself, an absent
// second argument makes the whole result absent.
package ops

import (
	"context"
	"errors"

	"github.com/roach88/opgraph/internal/algebra"
	"github.com/roach88/opgraph/internal/cache"
	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/queryir"
)

var (
	// ErrAbsent is returned by core resolvers whose result is legitimately
	// absent. It is the only error the lifting wrapper turns into Null.
	ErrAbsent = errors.New("absent")

	// ErrTypeMismatch marks a core resolver receiving a value inconsistent
	// with its declared argument type. It is a programming defect.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrNotFound is returned by backends when a reference does not resolve.
	ErrNotFound = errors.New("not found")
)

// Variant identifies how an operation was lifted.
type Variant string

const (
	VariantBasic        Variant = "basic"
	VariantDimDown      Variant = "basic-dim-down"
	VariantStandard     Variant = "standard"
	VariantTagConsuming Variant = "tag-consuming"
	VariantTagging      Variant = "tagging"
	VariantEqual        Variant = "equal"
	VariantTagGetter    Variant = "tag-getter"
	VariantRaw          Variant = "raw"
)

// Arg declares one operation argument.
type Arg struct {
	Name string
	Type ir.Type

	// Const requires the argument to be a literal at construction time.
	Const bool
}

// ArgTypes is an ordered list of argument types, keyed by argument name.
type ArgTypes []ir.Prop

// Get returns the type bound to name, or nil.
func (a ArgTypes) Get(name string) ir.Type {
	for _, p := range a {
		if p.Key == name {
			return p.Type
		}
	}
	return nil
}

// Names returns argument names in order.
func (a ArgTypes) Names() []string {
	names := make([]string, len(a))
	for i, p := range a {
		names[i] = p.Key
	}
	return names
}

// With returns a copy with the type of name replaced.
func (a ArgTypes) With(name string, t ir.Type) ArgTypes {
	out := make(ArgTypes, len(a))
	copy(out, a)
	for i := range out {
		if out[i].Key == name {
			out[i].Type = t
		}
	}
	return out
}

// Args is an ordered list of argument values handed to a resolver.
type Args struct {
	Names  []string
	Values []ir.Value

	// Scope holds tags peeled by the lifting wrapper on the way to the core.
	Scope algebra.Scope
}

// Get returns the value bound to name, or Null.
func (a Args) Get(name string) ir.Value {
	for i, n := range a.Names {
		if n == name {
			return a.Values[i]
		}
	}
	return ir.Null{}
}

// First returns the first argument value.
func (a Args) First() ir.Value {
	if len(a.Values) == 0 {
		return ir.Null{}
	}
	return a.Values[0]
}

// With returns a copy with the value of name replaced.
func (a Args) With(name string, v ir.Value) Args {
	values := make([]ir.Value, len(a.Values))
	copy(values, a.Values)
	for i, n := range a.Names {
		if n == name {
			values[i] = v
		}
	}
	return Args{Names: a.Names, Values: values, Scope: a.Scope}
}

// ReturnTypeFunc computes a return type from argument types.
type ReturnTypeFunc func(in ArgTypes) ir.Type

// ResolveFunc computes a result from argument values.
type ResolveFunc func(ctx context.Context, c *Call, args Args) (ir.Value, error)

// RefineFunc determines an output type that argument types alone cannot.
type RefineFunc func(ctx context.Context, rc *RefineCall) (ir.Type, error)

// FunctionInputsFunc gives the parameter types of a function-valued
// argument from the types of the other arguments.
type FunctionInputsFunc func(in ArgTypes) []ir.Prop

// Def is the declarative definition of an operation.
type Def struct {
	Name        string
	Description string
	Args        []Arg
	ReturnType  ReturnTypeFunc
	Resolve     ResolveFunc

	// RefineOutputType refines the core output type. Lifted operations
	// project it through their plan.
	RefineOutputType RefineFunc

	// RefineVia names a type-only operation returning TypeValues that the
	// refinement driver executes instead of calling a refiner.
	RefineVia string

	// FunctionInputs maps function-valued argument names to their
	// parameter types.
	FunctionInputs map[string]FunctionInputsFunc

	// FunctionRows maps a function-valued argument to the list argument
	// whose elements it is called with. Refinement samples those elements
	// to type function bodies that depend on data.
	FunctionRows map[string]string

	// NullsToCore lets absent arguments reach the core resolver
	// instead of short-circuiting to Null.
	NullsToCore bool
}

// ForwardOp identifies the node being executed within a query.
type ForwardOp struct {
	QueryID string
	Node    *ir.Output
}

// Call carries everything a resolver may consult.
type Call struct {
	Inputs  Args
	Forward ForwardOp
	Backend Backend
	Engine  Client
	Cache   *cache.Cache
	Stack   *ir.Stack

	// Concurrency bounds per-list fan-out inside the resolver.
	Concurrency int

	// SampleLimit bounds how many elements type-only operations inspect.
	SampleLimit int
}

// RefineCall carries everything a refiner may consult.
type RefineCall struct {
	// InputTypes are the refined input types in argument order.
	InputTypes ArgTypes

	// Node is the node with refined inputs.
	Node *ir.Output

	// Executable is Node with variables bound to values replaced by
	// literals, ready to hand to Client.Execute.
	Executable *ir.Output

	Client      Client
	Stack       *ir.Stack
	SampleLimit int
}

// Backend is the read-only data source consulted by domain operations.
type Backend interface {
	// Fetch returns the metadata value for a reference.
	Fetch(ctx context.Context, ref ir.Ref) (ir.Value, error)

	// Content returns the raw content of a reference.
	Content(ctx context.Context, ref ir.Ref) ([]byte, error)

	// Query executes an already built query.
	Query(ctx context.Context, q queryir.Query) ([]ir.Value, error)
}

// Client executes or refines arbitrary nodes.
type Client interface {
	Execute(ctx context.Context, node ir.Node, stack *ir.Stack) (ir.Value, error)
	Refine(ctx context.Context, node ir.Node, stack *ir.Stack) (ir.Node, error)
}

// Op is a registered operation. Only the lifting constructors in this
// package produce Ops.
type Op interface {
	Name() string
	Description() string
	Variant() Variant

	// Plan is the wrapping plan applied to the first argument. Raw and
	// tag-getter operations report an empty plan.
	Plan() algebra.Plan

	// ArgTypes returns the accepted argument types, in declaration order.
	ArgTypes() ArgTypes

	// ConstArgs lists arguments that must be literals.
	ConstArgs() []string

	ReturnType(in ArgTypes) ir.Type

	// ProjectCoreType wraps a core output type the way ReturnType wraps
	// the declared one, for the given argument types.
	ProjectCoreType(in ArgTypes, core ir.Type) ir.Type

	Resolve(ctx context.Context, c *Call) (ir.Value, error)

	// Refiner returns nil when the output type follows from input types.
	Refiner() RefineFunc

	// RefineVia names the paired type-only operation, or "".
	RefineVia() string

	// FunctionInputs returns the parameter types of a function-valued
	// argument, and false if name is not function-valued.
	FunctionInputs(name string, in ArgTypes) ([]ir.Prop, bool)

	// RowSource returns the list argument feeding function argument name.
	RowSource(name string) (string, bool)

	sealed()
}
