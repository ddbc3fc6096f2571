package compiler

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/hashicorp/go-multierror"

	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/ops"
)

// Document is a compiled expression document.
type Document struct {
	// Name is the source file name, if any.
	Name string

	// Expr is the constructed expression.
	Expr ir.Node

	// Vars binds the document's variables to literal values.
	Vars ir.Frame
}

// Stack returns a stack holding the document's variables.
func (d *Document) Stack() *ir.Stack {
	if len(d.Vars) == 0 {
		return nil
	}
	var s *ir.Stack
	return s.Push(d.Vars)
}

// VarNames returns the bound variable names, sorted.
func (d *Document) VarNames() []string {
	names := make([]string, 0, len(d.Vars))
	for name := range d.Vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compiler builds expressions against a registry.
//
// Thread-safety: safe for concurrent use. Each compilation gets its own
// CUE context.
type Compiler struct {
	registry *ops.Registry
}

// New creates a Compiler whose operation names resolve in registry.
func New(registry *ops.Registry) *Compiler {
	return &Compiler{registry: registry}
}

// CompileFile reads and compiles a .cue expression document.
func (c *Compiler) CompileFile(path string) (*Document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return c.CompileString(path, string(src))
}

// CompileString compiles CUE source. filename is used in error positions.
func (c *Compiler) CompileString(filename, src string) (*Document, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	doc, err := c.CompileValue(v)
	if doc != nil {
		doc.Name = filename
	}
	return doc, err
}

// CompileValue compiles an evaluated CUE value holding an expression
// document.
func (c *Compiler) CompileValue(v cue.Value) (*Document, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	b := &builder{registry: c.registry}
	doc := &Document{Vars: ir.Frame{}}
	scope := map[string]ir.Type{}

	if varsVal := v.LookupPath(cue.ParsePath("vars")); varsVal.Exists() {
		b.vars(varsVal, doc.Vars, scope)
	}

	exprVal := v.LookupPath(cue.ParsePath("expr"))
	if !exprVal.Exists() {
		b.fail(&CompileError{Field: "expr", Message: "expr is required", Pos: v.Pos()})
	} else {
		doc.Expr = b.node(exprVal, "expr", scope)
	}

	if err := b.errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return doc, nil
}

// builder accumulates every problem found while walking a document.
type builder struct {
	registry *ops.Registry
	errs     *multierror.Error
}

func (b *builder) fail(err error) {
	b.errs = multierror.Append(b.errs, err)
}

func (b *builder) failf(v cue.Value, field, format string, args ...any) {
	b.fail(&CompileError{Field: field, Message: fmt.Sprintf(format, args...), Pos: v.Pos()})
}

func (b *builder) vars(v cue.Value, frame ir.Frame, scope map[string]ir.Type) {
	iter, err := v.Fields()
	if err != nil {
		b.failf(v, "vars", "vars must be a struct")
		return
	}
	for iter.Next() {
		name := iter.Label()
		field := "vars." + name
		n := b.node(iter.Value(), field, scope)
		if n == nil {
			continue
		}
		lit, ok := n.(*ir.ConstNode)
		if !ok || ir.IsFnNode(lit) {
			b.failf(iter.Value(), field, "variable must be a literal")
			continue
		}
		frame[name] = ir.ValueBinding(ir.TypeOf(lit.Val), lit.Val)
		scope[name] = ir.TypeOf(lit.Val)
	}
}

// node compiles one expression. It returns nil after recording a failure.
func (b *builder) node(v cue.Value, field string, scope map[string]ir.Type) ir.Node {
	if v.Kind() != cue.StructKind {
		val, err := literalValue(v)
		if err != nil {
			b.failf(v, field, "%v", err)
			return nil
		}
		return ir.NewLiteral(val)
	}

	keys, err := labels(v)
	if err != nil {
		b.fail(formatCUEError(err))
		return nil
	}
	switch {
	case keys["op"]:
		return b.opNode(v, field, scope)
	case keys["var"]:
		return b.varNode(v, field, keys, scope)
	case keys["fn"]:
		return b.fnNode(v, field, keys, nil, scope)
	case keys["lit"]:
		if !b.only(v, field, keys, "lit") {
			return nil
		}
		val, err := literalValue(v.LookupPath(cue.ParsePath("lit")))
		if err != nil {
			b.failf(v, field+".lit", "%v", err)
			return nil
		}
		return ir.NewLiteral(val)
	case keys["ref"]:
		if !b.only(v, field, keys, "ref") {
			return nil
		}
		return b.refNode(v.LookupPath(cue.ParsePath("ref")), field+".ref")
	}
	b.failf(v, field, "expression needs one of op, var, fn, lit or ref")
	return nil
}

// only rejects fields other than the allowed ones.
func (b *builder) only(v cue.Value, field string, keys map[string]bool, allowed ...string) bool {
	ok := true
	for _, k := range sortedKeys(keys) {
		if !contains(allowed, k) {
			b.failf(v, field, "unexpected field %q", k)
			ok = false
		}
	}
	return ok
}

func (b *builder) varNode(v cue.Value, field string, keys map[string]bool, scope map[string]ir.Type) ir.Node {
	if !b.only(v, field, keys, "var") {
		return nil
	}
	name, err := v.LookupPath(cue.ParsePath("var")).String()
	if err != nil {
		b.failf(v, field+".var", "variable name must be a string")
		return nil
	}
	t, ok := scope[name]
	if !ok {
		b.failf(v, field+".var", "unbound variable %q", name)
		return nil
	}
	return ir.NewVar(name, t)
}

func (b *builder) refNode(v cue.Value, field string) ir.Node {
	var ref struct {
		Kind   string `json:"kind"`
		Digest string `json:"digest"`
		Path   string `json:"path"`
	}
	if err := v.Decode(&ref); err != nil {
		b.failf(v, field, "invalid reference: %v", err)
		return nil
	}
	if ref.Kind == "" || ref.Digest == "" {
		b.failf(v, field, "reference needs kind and digest")
		return nil
	}
	return ir.NewLiteral(ir.Ref{Kind: ref.Kind, Digest: ref.Digest, Path: ref.Path})
}

// fnNode compiles a function literal. declared gives the parameter types
// by position; missing ones are any.
func (b *builder) fnNode(v cue.Value, field string, keys map[string]bool, declared []ir.Prop, scope map[string]ir.Type) ir.Node {
	if !b.only(v, field, keys, "fn", "body") {
		return nil
	}
	var names []string
	if err := v.LookupPath(cue.ParsePath("fn")).Decode(&names); err != nil {
		b.failf(v, field+".fn", "parameters must be a list of names")
		return nil
	}
	bodyVal := v.LookupPath(cue.ParsePath("body"))
	if !bodyVal.Exists() {
		b.failf(v, field, "function needs a body")
		return nil
	}

	inner := make(map[string]ir.Type, len(scope)+len(names))
	for k, t := range scope {
		inner[k] = t
	}
	params := make([]ir.Prop, len(names))
	for i, name := range names {
		t := ir.AnyType
		if i < len(declared) && declared[i].Type != nil {
			t = declared[i].Type
		}
		params[i] = ir.P(name, t)
		inner[name] = t
	}

	body := b.node(bodyVal, field+".body", inner)
	if body == nil {
		return nil
	}
	return ir.NewFn(params, body)
}

func (b *builder) opNode(v cue.Value, field string, scope map[string]ir.Type) ir.Node {
	name, err := v.LookupPath(cue.ParsePath("op")).String()
	if err != nil {
		b.failf(v, field+".op", "operation name must be a string")
		return nil
	}
	op, ok := b.registry.Lookup(name)
	if !ok {
		b.failf(v, field+".op", "unknown operation %q", name)
		return nil
	}

	iter, err := v.Fields()
	if err != nil {
		b.fail(formatCUEError(err))
		return nil
	}
	var plain, fns []cue.Value
	var plainNames, fnNames []string
	for iter.Next() {
		label := iter.Label()
		if label == "op" {
			continue
		}
		if isFnExpr(iter.Value()) {
			fns = append(fns, iter.Value())
			fnNames = append(fnNames, label)
		} else {
			plain = append(plain, iter.Value())
			plainNames = append(plainNames, label)
		}
	}

	// Function parameter types depend on the other arguments, so those
	// are built first.
	failed := false
	var inputs ir.Inputs
	for i, arg := range plain {
		n := b.node(arg, field+"."+plainNames[i], scope)
		if n == nil {
			failed = true
			continue
		}
		inputs = append(inputs, ir.In(plainNames[i], n))
	}
	if failed {
		return nil
	}
	argTypes := ops.InputTypes(inputs)
	for i, arg := range fns {
		declared, _ := op.FunctionInputs(fnNames[i], argTypes)
		keys, err := labels(arg)
		if err != nil {
			b.fail(formatCUEError(err))
			failed = true
			continue
		}
		n := b.fnNode(arg, field+"."+fnNames[i], keys, declared, scope)
		if n == nil {
			failed = true
			continue
		}
		inputs = append(inputs, ir.In(fnNames[i], n))
	}
	if failed {
		return nil
	}

	out, err := b.registry.New(name, inputs...)
	if err != nil {
		ce := &CompileError{Field: field, Message: err.Error(), Pos: v.Pos(), Err: err}
		var cerr *ops.ConstructionError
		if errors.As(err, &cerr) && cerr.Arg != "" {
			ce.Field = field + "." + cerr.Arg
			if argVal := v.LookupPath(cue.MakePath(cue.Str(cerr.Arg))); argVal.Exists() {
				ce.Pos = argVal.Pos()
			}
		}
		b.fail(ce)
		return nil
	}
	return out
}

func isFnExpr(v cue.Value) bool {
	return v.Kind() == cue.StructKind && v.LookupPath(cue.ParsePath("fn")).Exists()
}

func labels(v cue.Value) (map[string]bool, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, err
	}
	keys := make(map[string]bool)
	for iter.Next() {
		keys[iter.Label()] = true
	}
	return keys, nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// literalValue converts concrete CUE data into a Value. Structs holding a
// single "_ref" field decode to references.
func literalValue(v cue.Value) (ir.Value, error) {
	raw, err := goValue(v)
	if err != nil {
		return nil, err
	}
	return ir.FromGo(raw)
}

func goValue(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		return v.Bool()
	case cue.IntKind:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		return v.Float64()
	case cue.FloatKind, cue.NumberKind:
		return v.Float64()
	case cue.StringKind:
		return v.String()
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, err
		}
		out := []any{}
		for iter.Next() {
			elem, err := goValue(iter.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, err
		}
		out := map[string]any{}
		for iter.Next() {
			elem, err := goValue(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Label()] = elem
		}
		return out, nil
	}
	return nil, fmt.Errorf("value must be concrete, got %v", v.IncompleteKind())
}
