package algebra

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opgraph/internal/ir"
)

var runTag = ir.Object{"run": ir.Str("r1")}

func incrementType(t ir.Type) ir.Type { return ir.NumberType }

func incrementValue(t *testing.T) ValueFunc {
	return func(_ context.Context, v ir.Value, _ Scope) (ir.Value, error) {
		n, ok := v.(ir.Num)
		if !assert.True(t, ok, "core must see a bare number, got %s", ir.ValueString(v)) {
			return nil, fmt.Errorf("unexpected %T", v)
		}
		return n + 1, nil
	}
}

func TestStandardWrappingRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input ir.Value
		typ   ir.Type
		want  ir.Value
	}{
		{"scalar", ir.Num(1), ir.NumberType, ir.Num(2)},
		{"absent scalar", ir.Null{}, ir.NewMaybe(ir.NumberType), ir.Null{}},
		{"list", ir.Array{ir.Num(1), ir.Num(2)}, ir.NewList(ir.NumberType), ir.Array{ir.Num(2), ir.Num(3)}},
		{
			"list with absent element",
			ir.Array{ir.Num(1), ir.Null{}},
			ir.NewList(ir.NewMaybe(ir.NumberType)),
			ir.Array{ir.Num(2), ir.Null{}},
		},
		{
			"tagged scalar",
			ir.WithTag(runTag, ir.Num(1)),
			ir.NewTagged(ir.NewDict(ir.P("run", ir.StringType)), ir.NumberType),
			ir.WithTag(runTag, ir.Num(2)),
		},
		{
			"tagged list",
			ir.WithTag(runTag, ir.Array{ir.Num(1), ir.WithTag(ir.Object{"step": ir.Num(0)}, ir.Num(5))}),
			nil,
			ir.WithTag(runTag, ir.Array{ir.Num(2), ir.WithTag(ir.Object{"step": ir.Num(0)}, ir.Num(6))}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ := tt.typ
			if typ == nil {
				typ = ir.TypeOf(tt.input)
			}
			predicted := Standard.Type(typ, incrementType)

			got, err := Standard.Value(context.Background(), tt.input, incrementValue(t))
			require.NoError(t, err)
			assert.True(t, ir.ValuesEqual(tt.want, got), "got %s", ir.ValueString(got))
			assert.True(t, ir.IsAssignable(ir.TypeOf(got), predicted),
				"value type %s must match predicted %s", ir.TypeOf(got), predicted)
		})
	}
}

func TestPlanTypeShapes(t *testing.T) {
	tag := ir.NewDict(ir.P("run", ir.RunType))
	tests := []struct {
		name     string
		plan     Plan
		input    ir.Type
		expected ir.Type
	}{
		{"basic scalar", Basic, ir.StringType, ir.NumberType},
		{"basic maybe", Basic, ir.NewMaybe(ir.StringType), ir.NewMaybe(ir.NumberType)},
		{"basic does not map", Basic, ir.NewList(ir.StringType), ir.NumberType},
		{"standard list of maybe", Standard, ir.NewList(ir.NewMaybe(ir.StringType)), ir.NewList(ir.NewMaybe(ir.NumberType))},
		{
			"standard tagged maybe list",
			Standard,
			ir.NewMaybe(ir.NewTagged(tag, ir.NewListBounded(ir.StringType, 1, 4))),
			ir.NewMaybe(ir.NewTagged(tag, ir.NewListBounded(ir.NumberType, 1, 4))),
		},
		{
			"standard union distributes",
			Standard,
			ir.NewUnion(ir.StringType, ir.NewList(ir.StringType)),
			ir.NewUnion(ir.NumberType, ir.NewList(ir.NumberType)),
		},
		{"standard none", Standard, ir.NoneType, ir.NoneType},
		{"dim-down flat list", DimDown, ir.NewList(ir.StringType), ir.NumberType},
		{"dim-down nested list", DimDown, ir.NewList(ir.NewList(ir.StringType)), ir.NewList(ir.NumberType)},
		{"const stripped", Standard, ir.NewConst(nil, ir.Str("x")), ir.NumberType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.plan.Type(tt.input, func(ir.Type) ir.Type { return ir.NumberType })
			assert.True(t, ir.TypesEqual(tt.expected, got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestDimDownValue(t *testing.T) {
	sum := func(_ context.Context, v ir.Value, _ Scope) (ir.Value, error) {
		total := 0.0
		for _, e := range v.(ir.Array) {
			if n, ok := ir.Detag(e).(ir.Num); ok {
				total += float64(n)
			}
		}
		return ir.Num(total), nil
	}

	got, err := DimDown.Value(context.Background(), ir.Array{ir.Num(1), ir.Num(2), ir.Num(3)}, sum)
	require.NoError(t, err)
	assert.Equal(t, ir.Num(6), got)

	got, err = DimDown.Value(context.Background(), ir.Array{ir.Array{ir.Num(1), ir.Num(2)}, ir.Null{}, ir.Array{ir.Num(3)}}, sum)
	require.NoError(t, err)
	assert.True(t, ir.ValuesEqual(ir.Array{ir.Num(3), ir.Null{}, ir.Num(3)}, got), "got %s", ir.ValueString(got))
}

func TestNullsToCore(t *testing.T) {
	isNone := Basic.WithNullsToCore()

	typ := isNone.Type(ir.NewMaybe(ir.NumberType), func(ir.Type) ir.Type { return ir.BooleanType })
	assert.True(t, ir.TypesEqual(ir.BooleanType, typ), "got %s", typ)

	var seen []ir.Value
	f := func(_ context.Context, v ir.Value, _ Scope) (ir.Value, error) {
		seen = append(seen, v)
		return ir.Bool(ir.IsNull(v)), nil
	}
	got, err := isNone.Value(context.Background(), ir.Null{}, f)
	require.NoError(t, err)
	assert.Equal(t, ir.Bool(true), got)
	assert.Len(t, seen, 1, "the core receives the null")
}

func TestConsumeTagsScope(t *testing.T) {
	plan := Standard.WithConsumeTags()
	input := ir.WithTag(runTag, ir.Array{
		ir.WithTag(ir.Object{"step": ir.Num(0)}, ir.Object{"loss": ir.WithTag(ir.Object{"x": ir.Num(1)}, ir.Num(0.5))}),
	})

	var tags []ir.Value
	f := func(_ context.Context, v ir.Value, scope Scope) (ir.Value, error) {
		run, ok := scope.Tag("run")
		require.True(t, ok)
		tags = append(tags, run)
		step, ok := scope.Tag("step")
		require.True(t, ok)
		tags = append(tags, step)
		assert.True(t, ir.ValuesEqual(ir.Object{"loss": ir.Num(0.5)}, v), "nested tags are stripped")
		return ir.Str("ok"), nil
	}

	got, err := plan.Value(context.Background(), input, f)
	require.NoError(t, err)
	assert.Equal(t, []ir.Value{ir.Str("r1"), ir.Num(0)}, tags)
	assert.True(t, ir.IsAssignable(ir.TypeOf(got), plan.Type(ir.TypeOf(input), func(ir.Type) ir.Type { return ir.StringType })))
}

func TestValueConcurrentKeepsOrder(t *testing.T) {
	input := make(ir.Array, 50)
	want := make(ir.Array, 50)
	for i := range input {
		input[i] = ir.Num(i)
		want[i] = ir.Num(i * 10)
	}

	f := func(_ context.Context, v ir.Value, _ Scope) (ir.Value, error) {
		time.Sleep(time.Duration(rand.Intn(200)) * time.Microsecond)
		return v.(ir.Num) * 10, nil
	}
	got, err := Standard.ValueConcurrent(context.Background(), input, f, 8)
	require.NoError(t, err)
	assert.True(t, ir.ValuesEqual(want, got), "results reassemble positionally")
}

func TestValueErrorsPropagate(t *testing.T) {
	boom := fmt.Errorf("core failure")
	f := func(_ context.Context, v ir.Value, _ Scope) (ir.Value, error) {
		if v == ir.Num(3) {
			return nil, boom
		}
		return v, nil
	}
	_, err := Standard.ValueConcurrent(context.Background(), ir.Array{ir.Num(1), ir.Num(3)}, f, 2)
	assert.ErrorIs(t, err, boom)

	_, err = Standard.Value(context.Background(), ir.Array{ir.Num(3)}, f)
	assert.ErrorIs(t, err, boom)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Standard.Value(ctx, ir.Num(1), func(context.Context, ir.Value, Scope) (ir.Value, error) {
		return ir.Num(1), nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPlanString(t *testing.T) {
	assert.Equal(t, "[nullable,taggable]+nullsToCore", Basic.WithNullsToCore().String())
}
