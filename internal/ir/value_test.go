package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = Str("test")
	var _ Value = Num(42)
	var _ Value = Bool(true)
	var _ Value = Array{Str("a"), Num(1)}
	var _ Value = Object{"key": Str("value")}
	var _ Value = TaggedValue{}
	var _ Value = Ref{}
	var _ Value = TypeValue{}
	var _ Value = FuncValue{}
}

func TestObjectSortedKeys(t *testing.T) {
	obj := Object{
		"zebra":  Str("z"),
		"apple":  Str("a"),
		"banana": Str("b"),
	}

	assert.Equal(t, []string{"apple", "banana", "zebra"}, obj.SortedKeys())
}

func TestObjectSortedKeysRFC8785Order(t *testing.T) {
	obj := Object{"a": Num(1), "A": Num(2), "aa": Num(3), "aA": Num(4), "Aa": Num(5), "AA": Num(6)}

	// 'A' = 65, 'a' = 97
	assert.Equal(t, []string{"A", "AA", "Aa", "a", "aA", "aa"}, obj.SortedKeys())
}

func TestWithTagMirrorsNewTagged(t *testing.T) {
	runTag := Object{"run": Str("r1")}
	projTag := Object{"project": Str("p1")}

	v := WithTag(runTag, WithTag(projTag, Num(3)))

	tv, ok := v.(TaggedValue)
	if !assert.True(t, ok) {
		return
	}
	assert.Equal(t, Num(3), tv.Value)

	expectedType := NewTagged(NewDict(P("run", StringType)), NewTagged(NewDict(P("project", StringType)), NumberType))
	assert.True(t, TypesEqual(expectedType, TypeOf(v)), "runtime tag shape mirrors the type: %s", TypeOf(v))
}

func TestDetagIdempotent(t *testing.T) {
	v := WithTag(Object{"run": Str("r1")}, Array{WithTag(Object{"x": Num(1)}, Num(1))})

	once := Detag(v)
	twice := Detag(once)
	assert.True(t, ValuesEqual(once, twice))
	assert.IsType(t, Array{}, once)

	deep := DetagDeep(v)
	assert.True(t, ValuesEqual(Array{Num(1)}, deep))
}

func TestIsNull(t *testing.T) {
	assert.True(t, IsNull(Null{}))
	assert.True(t, IsNull(nil))
	assert.True(t, IsNull(WithTag(Object{}, Null{})))
	assert.False(t, IsNull(Num(0)))
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{Bool(true), true},
		{Bool(false), false},
		{Num(0), false},
		{Num(2), true},
		{Str(""), false},
		{Str("x"), true},
		{Null{}, false},
		{WithTag(Object{"run": Str("r")}, Bool(true)), true},
		{Array{}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Truthy(tt.v), ValueString(tt.v))
	}
}

func TestValuesEqual(t *testing.T) {
	a := Object{"k": Array{Num(1), WithTag(Object{"t": Num(1)}, Str("x"))}}
	b := Object{"k": Array{Num(1), WithTag(Object{"t": Num(1)}, Str("x"))}}
	c := Object{"k": Array{Num(1), Str("x")}}

	assert.True(t, ValuesEqual(a, b))
	assert.False(t, ValuesEqual(a, c), "tags are significant")
	assert.False(t, ValuesEqual(Num(1), Str("1")))
}

func TestStackLookup(t *testing.T) {
	var s *Stack
	assert.Equal(t, 0, s.Depth())

	outer := s.Push(Frame{"row": ValueBinding(nil, Num(1)), "index": ValueBinding(nil, Num(0))})
	inner := outer.Push(Frame{"row": TypeBinding(StringType)})

	b, ok := inner.Lookup("row")
	assert.True(t, ok)
	assert.False(t, b.HasValue, "innermost binding wins")

	b, ok = inner.Lookup("index")
	assert.True(t, ok)
	assert.Equal(t, Num(0), b.Value)

	b, ok = outer.Lookup("row")
	assert.True(t, ok)
	assert.Equal(t, Num(1), b.Value, "push does not mutate the parent")

	assert.True(t, outer.HasValues([]string{"row", "index"}))
	assert.False(t, inner.HasValues([]string{"row"}))
}

func TestFreeVars(t *testing.T) {
	row := NewVar("row", AnyType)
	other := NewVar("other", AnyType)
	body := NewOutput(AnyType, "pick", Inputs{In("obj", row), In("key", other)})
	fn := NewFn([]Prop{P("row", AnyType)}, body)
	outer := NewOutput(AnyType, "map", Inputs{In("arr", NewVar("arr", AnyType)), In("mapFn", fn)})

	assert.Equal(t, []string{"arr", "other"}, FreeVars(outer))
}
