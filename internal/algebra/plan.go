// Package algebra implements the wrapping algebra shared by every lifted
// operation: an ordered list of wrapper kinds (a Plan) interpreted once at the
// type level and once at the value level, so both projections are derived
// from the same declaration.
package algebra

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/opgraph/internal/ir"
)

// Wrapper is one unwrap-apply-rewrap concern.
type Wrapper int

const (
	// Nullable handles absence. Maybe(x) applies the rest to x and rewraps
	// Maybe; a Null value short-circuits to Null.
	Nullable Wrapper = iota

	// Taggable peels one Tagged layer, applies the rest to the value and
	// rewraps with the same tag.
	Taggable

	// Mappable applies the rest to each element of a list, keeping length
	// bounds. Non-lists get the rest applied in place.
	Mappable

	// MappableNested is Mappable restricted to lists whose elements are
	// themselves lists. Dim-down reducers use it so that a list of lists
	// reduces per inner list while a flat list reduces as a whole.
	MappableNested
)

func (w Wrapper) String() string {
	switch w {
	case Nullable:
		return "nullable"
	case Taggable:
		return "taggable"
	case Mappable:
		return "mappable"
	case MappableNested:
		return "mappableNested"
	}
	return "unknown"
}

// Plan is an ordered list of wrappers plus the flags that alter how the
// innermost core is reached.
type Plan struct {
	Steps []Wrapper

	// ConsumeTags strips nested tags from the core input. Peeled tags are
	// always available to the core through its Scope.
	ConsumeTags bool

	// NullsToCore lets absent values reach the core instead of
	// short-circuiting. Equality and absence checks need real nulls.
	NullsToCore bool
}

// Canonical plans.
var (
	Basic    = Plan{Steps: []Wrapper{Nullable, Taggable}}
	Standard = Plan{Steps: []Wrapper{Nullable, Taggable, Mappable, Nullable, Taggable}}
	DimDown  = Plan{Steps: []Wrapper{Nullable, Taggable, MappableNested, Nullable, Taggable}}
)

// WithConsumeTags returns a copy of p with ConsumeTags set.
func (p Plan) WithConsumeTags() Plan {
	p.ConsumeTags = true
	return p
}

// WithNullsToCore returns a copy of p with NullsToCore set.
func (p Plan) WithNullsToCore() Plan {
	p.NullsToCore = true
	return p
}

func (p Plan) String() string {
	parts := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		parts[i] = s.String()
	}
	out := "[" + strings.Join(parts, ",") + "]"
	if p.ConsumeTags {
		out += "+consumeTags"
	}
	if p.NullsToCore {
		out += "+nullsToCore"
	}
	return out
}

// TypeFunc computes the core output type for a fully unwrapped input type.
type TypeFunc func(ctx context.Context, t ir.Type, scope Scope) (ir.Type, error)

// ValueFunc computes the core output value for a fully unwrapped input.
type ValueFunc func(ctx context.Context, v ir.Value, scope Scope) (ir.Value, error)

// Type projects f through the plan at the type level.
func (p Plan) Type(t ir.Type, f func(ir.Type) ir.Type) ir.Type {
	out, _ := p.TypeCtx(context.Background(), t, func(_ context.Context, t ir.Type, _ Scope) (ir.Type, error) {
		return f(t), nil
	})
	return out
}

// TypeCtx projects f through the plan at the type level. f may block (for
// example to refine against a backend).
func (p Plan) TypeCtx(ctx context.Context, t ir.Type, f TypeFunc) (ir.Type, error) {
	r := typeRun{plan: p, f: f}
	return r.apply(ctx, p.Steps, t, Scope{})
}

// Value projects f through the plan at the value level, sequentially.
func (p Plan) Value(ctx context.Context, v ir.Value, f ValueFunc) (ir.Value, error) {
	return p.ValueTyped(ctx, v, nil, f, 0)
}

// ValueConcurrent is Value with list elements evaluated concurrently, at most
// limit at a time per list. Results are reassembled in positional order.
func (p Plan) ValueConcurrent(ctx context.Context, v ir.Value, f ValueFunc, limit int) (ir.Value, error) {
	if limit <= 0 {
		limit = 1
	}
	return p.ValueTyped(ctx, v, nil, f, limit)
}

// ValueTyped is Value guided by t, the static type of v (nil if unknown).
// When the data cannot tell whether a list is nested (it is empty or every
// element is absent), MappableNested follows t, so the value keeps the
// shape the type level predicts. A limit above zero evaluates list
// elements concurrently.
func (p Plan) ValueTyped(ctx context.Context, v ir.Value, t ir.Type, f ValueFunc, limit int) (ir.Value, error) {
	r := valueRun{plan: p, f: f, limit: limit}
	return r.apply(ctx, p.Steps, v, t, Scope{})
}

type typeRun struct {
	plan Plan
	f    TypeFunc
}

func (r typeRun) apply(ctx context.Context, steps []Wrapper, t ir.Type, scope Scope) (ir.Type, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return r.core(ctx, t, scope)
	}
	if c, ok := t.(ir.Const); ok {
		return r.apply(ctx, steps, c.Type, scope)
	}
	if u, ok := t.(ir.Union); ok {
		members := make([]ir.Type, 0, len(u.Members))
		for _, m := range u.Members {
			out, err := r.apply(ctx, steps, m, scope)
			if err != nil {
				return nil, err
			}
			members = append(members, out)
		}
		return ir.NewUnion(members...), nil
	}

	step, rest := steps[0], steps[1:]
	switch step {
	case Nullable:
		return r.nullable(ctx, rest, t, scope)
	case Taggable:
		tt, ok := t.(ir.Tagged)
		if !ok {
			return r.apply(ctx, rest, t, scope)
		}
		out, err := r.apply(ctx, rest, tt.Value, scope.withTagType(tt.Tag))
		if err != nil {
			return nil, err
		}
		return ir.NewTagged(tt.Tag, out), nil
	case Mappable, MappableNested:
		l, ok := t.(ir.List)
		if !ok || (step == MappableNested && !ir.IsListLike(l.Object)) {
			return r.apply(ctx, rest, t, scope)
		}
		out, err := r.apply(ctx, rest, l.Object, scope)
		if err != nil {
			return nil, err
		}
		return ir.List{Object: out, MinLen: l.MinLen, MaxLen: l.MaxLen}, nil
	}
	return r.apply(ctx, rest, t, scope)
}

func (r typeRun) nullable(ctx context.Context, rest []Wrapper, t ir.Type, scope Scope) (ir.Type, error) {
	switch {
	case ir.IsPlain(t, ir.NameNone):
		if r.plan.NullsToCore {
			return r.apply(ctx, rest, t, scope)
		}
		return ir.NoneType, nil
	case t.Kind() == ir.KindMaybe:
		inner, err := r.apply(ctx, rest, t.(ir.Maybe).Inner, scope)
		if err != nil {
			return nil, err
		}
		if !r.plan.NullsToCore {
			return ir.NewMaybe(inner), nil
		}
		none, err := r.apply(ctx, rest, ir.NoneType, scope)
		if err != nil {
			return nil, err
		}
		return ir.NewUnion(inner, none), nil
	}
	return r.apply(ctx, rest, t, scope)
}

// core guards the core function: unless nulls flow to the core, it only
// ever sees non-nullable types.
func (r typeRun) core(ctx context.Context, t ir.Type, scope Scope) (ir.Type, error) {
	if r.plan.ConsumeTags {
		t = ir.DetagTypeDeep(t)
	}
	if r.plan.NullsToCore || !ir.IsNullable(t) {
		return r.f(ctx, t, scope)
	}
	if ir.IsPlain(t, ir.NameNone) {
		return ir.NoneType, nil
	}
	out, err := r.f(ctx, ir.NonNullable(t), scope)
	if err != nil {
		return nil, err
	}
	return ir.NewMaybe(out), nil
}

type valueRun struct {
	plan  Plan
	f     ValueFunc
	limit int
}

func (r valueRun) apply(ctx context.Context, steps []Wrapper, v ir.Value, hint ir.Type, scope Scope) (ir.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if v == nil {
		v = ir.Null{}
	}
	if len(steps) == 0 {
		return r.core(ctx, v, scope)
	}

	step, rest := steps[0], steps[1:]
	switch step {
	case Nullable:
		if _, isNull := v.(ir.Null); isNull && !r.plan.NullsToCore {
			return ir.Null{}, nil
		}
		return r.apply(ctx, rest, v, hint, scope)
	case Taggable:
		tv, ok := v.(ir.TaggedValue)
		if !ok {
			return r.apply(ctx, rest, v, hint, scope)
		}
		out, err := r.apply(ctx, rest, tv.Value, hint, scope.withTag(tv.Tag))
		if err != nil {
			return nil, err
		}
		return ir.WithTag(tv.Tag, out), nil
	case Mappable, MappableNested:
		arr, ok := v.(ir.Array)
		if !ok {
			return r.apply(ctx, rest, v, hint, scope)
		}
		l, hinted := listHint(hint)
		if step == MappableNested {
			nested, decided := arrayNesting(arr)
			if !decided {
				nested = hinted && ir.IsListLike(l.Object)
			}
			if !nested {
				return r.apply(ctx, rest, v, hint, scope)
			}
		}
		var elem ir.Type
		if hinted {
			elem = l.Object
		}
		return r.mapElements(ctx, rest, arr, elem, scope)
	}
	return r.apply(ctx, rest, v, hint, scope)
}

func (r valueRun) mapElements(ctx context.Context, rest []Wrapper, arr ir.Array, hint ir.Type, scope Scope) (ir.Value, error) {
	out := make(ir.Array, len(arr))
	if r.limit <= 0 {
		for i, e := range arr {
			res, err := r.apply(ctx, rest, e, hint, scope)
			if err != nil {
				return nil, err
			}
			out[i] = res
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	for i, e := range arr {
		g.Go(func() error {
			res, err := r.apply(gctx, rest, e, hint, scope)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r valueRun) core(ctx context.Context, v ir.Value, scope Scope) (ir.Value, error) {
	if r.plan.ConsumeTags {
		v = ir.DetagDeep(v)
	}
	if !r.plan.NullsToCore && ir.IsNull(v) {
		return ir.Null{}, nil
	}
	return r.f(ctx, v, scope)
}

// arrayNesting mirrors the type-level MappableNested test: every present
// element is a (possibly tagged) array. decided is false when no element is
// present, since the data alone cannot answer.
func arrayNesting(arr ir.Array) (nested, decided bool) {
	for _, e := range arr {
		if ir.IsNull(e) {
			continue
		}
		if _, ok := ir.Detag(e).(ir.Array); !ok {
			return false, true
		}
		decided = true
	}
	return decided, decided
}

// listHint finds the list type under Const, Maybe and Tagged layers. A union
// only counts when a single non-none member remains.
func listHint(t ir.Type) (ir.List, bool) {
	for t != nil {
		switch tt := t.(type) {
		case ir.List:
			return tt, true
		case ir.Const:
			t = tt.Type
		case ir.Maybe:
			t = tt.Inner
		case ir.Tagged:
			t = tt.Value
		case ir.Union:
			var only ir.Type
			for _, m := range tt.Members {
				if ir.IsPlain(m, ir.NameNone) {
					continue
				}
				if only != nil {
					return ir.List{}, false
				}
				only = m
			}
			t = only
		default:
			return ir.List{}, false
		}
	}
	return ir.List{}, false
}
