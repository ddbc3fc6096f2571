package ops

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/opgraph/internal/algebra"
	"github.com/roach88/opgraph/internal/cache"
	"github.com/roach88/opgraph/internal/ir"
)

// lifted is the single Op implementation. Variants differ only in their
// plan and flags.
type lifted struct {
	def     Def
	variant Variant
	plan    algebra.Plan
	raw     bool
	tagging bool

	argTypes ArgTypes
	cache    *cache.Cache
}

func (*lifted) sealed() {}

// LiftBasic lifts over absence and tags only. The first argument is never
// list-distributed.
func LiftBasic(def Def) Op {
	return newLifted(def, VariantBasic, algebra.Basic)
}

// LiftBasicDimDown lifts a reducer: the core receives a whole list and
// collapses one dimension. A list of lists reduces per inner list.
func LiftBasicDimDown(def Def) Op {
	return newLifted(def, VariantDimDown, algebra.DimDown)
}

// LiftStandard lifts a scalar operation so it applies transparently to one
// value or a list of values, absent or tagged.
func LiftStandard(def Def) Op {
	return newLifted(def, VariantStandard, algebra.Standard)
}

// LiftTagConsuming is LiftStandard with nested tags stripped from the core
// input. The core reads peeled tags from Args.Scope.
func LiftTagConsuming(def Def) Op {
	return newLifted(def, VariantTagConsuming, algebra.Standard.WithConsumeTags())
}

// LiftTagging is LiftStandard with each result tagged by the input that
// produced it: {<first arg name>: input}.
func LiftTagging(def Def) Op {
	op := newLifted(def, VariantTagging, algebra.Standard)
	op.tagging = true
	return op
}

// LiftEqual lifts a comparison that must see real nulls. Neither the first
// argument nor the others short-circuit on absence.
func LiftEqual(def Def) Op {
	return newLifted(def, VariantEqual, algebra.Standard.WithNullsToCore())
}

// NewRaw registers an operation that manages its own wrapping. ReturnType
// and Resolve receive argument types and values unmodified.
func NewRaw(def Def) Op {
	op := newLifted(def, VariantRaw, algebra.Plan{})
	op.raw = true
	op.argTypes = declaredArgTypes(def.Args)
	return op
}

func newLifted(def Def, variant Variant, plan algebra.Plan) *lifted {
	if def.NullsToCore {
		plan = plan.WithNullsToCore()
	}
	op := &lifted{def: def, variant: variant, plan: plan}
	op.argTypes = declaredArgTypes(def.Args)
	if len(op.argTypes) > 0 {
		op.argTypes[0].Type = widenFirst(plan, op.argTypes[0].Type)
		for i := 1; i < len(op.argTypes); i++ {
			op.argTypes[i].Type = ir.NewMaybe(op.argTypes[i].Type)
		}
	}
	return op
}

func declaredArgTypes(args []Arg) ArgTypes {
	out := make(ArgTypes, len(args))
	for i, a := range args {
		t := a.Type
		if t == nil {
			t = ir.AnyType
		}
		out[i] = ir.P(a.Name, t)
	}
	return out
}

// widenFirst widens a core argument type to the outer shape the plan
// accepts. Tags need no widening; assignability looks through them.
func widenFirst(plan algebra.Plan, t ir.Type) ir.Type {
	for _, step := range plan.Steps {
		if step == algebra.Mappable || step == algebra.MappableNested {
			t = ir.NewUnion(t, ir.NewList(ir.NewMaybe(t)))
			break
		}
	}
	return ir.NewMaybe(t)
}

func (o *lifted) Name() string             { return o.def.Name }
func (o *lifted) Description() string      { return o.def.Description }
func (o *lifted) Variant() Variant         { return o.variant }
func (o *lifted) Plan() algebra.Plan       { return o.plan }
func (o *lifted) RefineVia() string        { return o.def.RefineVia }
func (o *lifted) ArgTypes() ArgTypes       { return append(ArgTypes(nil), o.argTypes...) }
func (o *lifted) withCache(c *cache.Cache) { o.cache = c }

func (o *lifted) ConstArgs() []string {
	var names []string
	for _, a := range o.def.Args {
		if a.Const {
			names = append(names, a.Name)
		}
	}
	return names
}

func (o *lifted) FunctionInputs(name string, in ArgTypes) ([]ir.Prop, bool) {
	f, ok := o.def.FunctionInputs[name]
	if !ok {
		return nil, false
	}
	return f(in), true
}

func (o *lifted) RowSource(name string) (string, bool) {
	src, ok := o.def.FunctionRows[name]
	return src, ok
}

// ReturnType computes the lifted return type. Results are memoized in the
// injected cache keyed by operation name and argument types.
func (o *lifted) ReturnType(in ArgTypes) ir.Type {
	if o.cache == nil {
		return o.computeReturnType(in)
	}
	key := cache.Key(cache.NamespaceReturnType, o.def.Name, argTypesKey(in))
	t, err := cache.Load(o.cache, key, func() (ir.Type, error) {
		return o.computeReturnType(in), nil
	})
	if err != nil {
		return o.computeReturnType(in)
	}
	return t
}

func argTypesKey(in ArgTypes) string {
	parts := make([]string, len(in))
	for i, p := range in {
		parts[i] = p.Key + "=" + ir.TypeDigest(p.Type)
	}
	return strings.Join(parts, ",")
}

func (o *lifted) computeReturnType(in ArgTypes) ir.Type {
	if o.def.ReturnType == nil {
		return ir.AnyType
	}
	if o.raw {
		return o.def.ReturnType(in)
	}
	out, _ := o.projectType(context.Background(), in, func(_ context.Context, core ArgTypes) (ir.Type, error) {
		return o.def.ReturnType(core), nil
	})
	return out
}

func (o *lifted) ProjectCoreType(in ArgTypes, core ir.Type) ir.Type {
	if o.raw {
		return core
	}
	out, _ := o.projectType(context.Background(), in, func(context.Context, ArgTypes) (ir.Type, error) {
		return core, nil
	})
	return out
}

// projectType runs a core type function through the plan. The first
// argument is projected; the others are detagged and an absent one makes
// the result nullable.
func (o *lifted) projectType(ctx context.Context, in ArgTypes, core func(context.Context, ArgTypes) (ir.Type, error)) (ir.Type, error) {
	if len(in) == 0 {
		return core(ctx, in)
	}
	first := in[0]
	rest := make(ArgTypes, 0, len(in)-1)
	nullableRest := false
	for _, p := range in[1:] {
		t := ir.DetagType(p.Type)
		if !o.plan.NullsToCore && ir.IsNullable(t) {
			if ir.IsPlain(ir.ConstValueType(t), ir.NameNone) {
				return ir.NoneType, nil
			}
			nullableRest = true
			t = ir.NonNullable(t)
		}
		rest = append(rest, ir.P(p.Key, t))
	}

	out, err := o.plan.TypeCtx(ctx, first.Type, func(ctx context.Context, t ir.Type, _ algebra.Scope) (ir.Type, error) {
		args := append(ArgTypes{ir.P(first.Key, t)}, rest...)
		r, err := core(ctx, args)
		if err != nil {
			return nil, err
		}
		if o.tagging {
			r = ir.NewTagged(ir.NewDict(ir.P(first.Key, t)), r)
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	if nullableRest {
		out = ir.NewMaybe(out)
	}
	return out, nil
}

// Resolve evaluates the operation. Core resolver errors propagate
// unmodified except ErrAbsent, which becomes Null.
func (o *lifted) Resolve(ctx context.Context, c *Call) (ir.Value, error) {
	if o.def.Resolve == nil {
		return nil, fmt.Errorf("op %s has no resolver", o.def.Name)
	}
	if o.raw {
		return o.callCore(ctx, c, c.Inputs)
	}
	args := c.Inputs
	if len(args.Values) == 0 {
		return o.callCore(ctx, c, args)
	}

	values := make([]ir.Value, len(args.Values))
	copy(values, args.Values)
	for i := 1; i < len(values); i++ {
		v := ir.Detag(values[i])
		if v == nil {
			v = ir.Null{}
		}
		if !o.plan.NullsToCore && ir.IsNull(v) {
			return ir.Null{}, nil
		}
		values[i] = v
	}

	f := func(ctx context.Context, v ir.Value, scope algebra.Scope) (ir.Value, error) {
		coreValues := make([]ir.Value, len(values))
		copy(coreValues, values)
		coreValues[0] = v
		out, err := o.callCore(ctx, c, Args{Names: args.Names, Values: coreValues, Scope: scope})
		if err != nil {
			return nil, err
		}
		if o.tagging {
			out = ir.WithTag(ir.Object{args.Names[0]: v}, out)
		}
		return out, nil
	}
	limit := 0
	if c.Concurrency > 1 {
		limit = c.Concurrency
	}
	return o.plan.ValueTyped(ctx, values[0], firstInputType(c), f, limit)
}

// firstInputType is the static type of the first input, or nil when the
// call was not made for a graph node.
func firstInputType(c *Call) ir.Type {
	n := c.Forward.Node
	if n == nil || len(n.Inputs) == 0 || n.Inputs[0].Node == nil {
		return nil
	}
	return n.Inputs[0].Node.NodeType()
}

func (o *lifted) callCore(ctx context.Context, c *Call, args Args) (ir.Value, error) {
	out, err := o.def.Resolve(ctx, c, args)
	if errors.Is(err, ErrAbsent) {
		return ir.Null{}, nil
	}
	if err != nil {
		return nil, err
	}
	if out == nil {
		return ir.Null{}, nil
	}
	return out, nil
}

// Refiner returns the output-type refiner. For lifted operations the core
// refiner is projected through the plan like the return type.
func (o *lifted) Refiner() RefineFunc {
	if o.def.RefineOutputType == nil {
		return nil
	}
	if o.raw {
		return o.def.RefineOutputType
	}
	return func(ctx context.Context, rc *RefineCall) (ir.Type, error) {
		return o.projectType(ctx, rc.InputTypes, func(ctx context.Context, core ArgTypes) (ir.Type, error) {
			inner := *rc
			inner.InputTypes = core
			return o.def.RefineOutputType(ctx, &inner)
		})
	}
}

// LiftTagGetter creates an operation returning the tag stored under tagKey.
// It searches outward-in through unions, absence, tags and lists, so a list
// of tagged values yields a list of their tags. declared is the result type
// when the input type is unknown.
func LiftTagGetter(name, tagKey string, declared ir.Type) Op {
	def := Def{
		Name:        name,
		Description: fmt.Sprintf("returns the %q tag of its input", tagKey),
		Args:        []Arg{{Name: "obj", Type: ir.AnyType}},
		ReturnType: func(in ArgTypes) ir.Type {
			return tagGetterType(in[0].Type, tagKey, declared)
		},
		Resolve: func(_ context.Context, _ *Call, args Args) (ir.Value, error) {
			return tagGetterValue(args.First(), tagKey), nil
		},
	}
	op := newLifted(def, VariantTagGetter, algebra.Plan{})
	op.raw = true
	op.argTypes = declaredArgTypes(def.Args)
	return op
}

func tagGetterType(t ir.Type, key string, declared ir.Type) ir.Type {
	switch tt := t.(type) {
	case ir.Const:
		return tagGetterType(tt.Type, key, declared)
	case ir.Union:
		members := make([]ir.Type, len(tt.Members))
		for i, m := range tt.Members {
			members[i] = tagGetterType(m, key, declared)
		}
		return ir.NewUnion(members...)
	case ir.Maybe:
		return ir.NewMaybe(tagGetterType(tt.Inner, key, declared))
	case ir.Plain:
		if tt.Name == ir.NameAny {
			return declared
		}
	}
	if found, ok := algebra.FindTagType(t, key); ok {
		return found
	}
	if l, ok := ir.DetagType(t).(ir.List); ok {
		return ir.List{Object: tagGetterType(l.Object, key, declared), MinLen: l.MinLen, MaxLen: l.MaxLen}
	}
	return ir.NoneType
}

func tagGetterValue(v ir.Value, key string) ir.Value {
	if v == nil {
		return ir.Null{}
	}
	if found, ok := algebra.FindTag(v, key); ok {
		return found
	}
	if arr, ok := ir.Detag(v).(ir.Array); ok {
		out := make(ir.Array, len(arr))
		for i, e := range arr {
			out[i] = tagGetterValue(e, key)
		}
		return out
	}
	return ir.Null{}
}
