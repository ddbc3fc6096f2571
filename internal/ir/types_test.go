package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeSealed(t *testing.T) {
	var _ Type = Plain{}
	var _ Type = Maybe{}
	var _ Type = Tagged{}
	var _ Type = List{}
	var _ Type = Union{}
	var _ Type = TypedDict{}
	var _ Type = Function{}
	var _ Type = Const{}
}

func TestNewUnionDeduplicates(t *testing.T) {
	u := NewUnion(NumberType, StringType, NumberType, NewUnion(StringType, BooleanType))

	union, ok := u.(Union)
	if assert.True(t, ok, "got %s", u) {
		assert.Len(t, union.Members, 3)
		assert.True(t, TypesEqual(NumberType, union.Members[0]), "first-seen order")
	}
}

func TestNewUnionNormalization(t *testing.T) {
	tests := []struct {
		name     string
		members  []Type
		expected Type
	}{
		{"empty is invalid", nil, InvalidType},
		{"single member", []Type{NumberType}, NumberType},
		{"invalid dropped", []Type{InvalidType, StringType}, StringType},
		{"none makes maybe", []Type{NumberType, NoneType}, NewMaybe(NumberType)},
		{"only none", []Type{NoneType}, NoneType},
		{"maybe flattened", []Type{NewMaybe(NumberType), NumberType}, NewMaybe(NumberType)},
		{"any absorbs", []Type{NumberType, AnyType}, AnyType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewUnion(tt.members...)
			assert.True(t, TypesEqual(tt.expected, got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestNewMaybeCollapses(t *testing.T) {
	assert.True(t, TypesEqual(NewMaybe(NumberType), NewMaybe(NewMaybe(NumberType))))
	assert.True(t, TypesEqual(NoneType, NewMaybe(NoneType)))
}

func TestNewTaggedChains(t *testing.T) {
	runTag := NewDict(P("run", RunType))
	projTag := NewDict(P("project", StringType))

	inner := NewTagged(projTag, NumberType)
	outer := NewTagged(runTag, inner)

	tagged, ok := outer.(Tagged)
	if assert.True(t, ok) {
		assert.True(t, TypesEqual(NumberType, tagged.Value), "value is not nested in a second tagged layer")
		chain, ok := tagged.Tag.(Tagged)
		if assert.True(t, ok) {
			assert.True(t, TypesEqual(projTag, chain.Tag), "older tag")
			assert.True(t, TypesEqual(runTag, chain.Value), "newer tag")
		}
	}
}

func TestTypesEqualUnionOrder(t *testing.T) {
	a := NewUnion(NumberType, StringType)
	b := NewUnion(StringType, NumberType)
	assert.True(t, TypesEqual(a, b))
}

func TestTypesEqualListBounds(t *testing.T) {
	assert.True(t, TypesEqual(NewListBounded(NumberType, 1, 3), NewListBounded(NumberType, 1, 3)))
	assert.False(t, TypesEqual(NewListBounded(NumberType, 1, 3), NewList(NumberType)))
}

func TestIsAssignable(t *testing.T) {
	runTag := NewDict(P("run", RunType))
	tests := []struct {
		name string
		src  Type
		dst  Type
		want bool
	}{
		{"same plain", NumberType, NumberType, true},
		{"different plain", NumberType, StringType, false},
		{"anything to any", NewList(StringType), AnyType, true},
		{"invalid to anything", InvalidType, NumberType, true},
		{"value to maybe", NumberType, NewMaybe(NumberType), true},
		{"maybe to value", NewMaybe(NumberType), NumberType, false},
		{"none to maybe", NoneType, NewMaybe(StringType), true},
		{"tags are transparent", NewTagged(runTag, NumberType), NumberType, true},
		{"untagged to tagged", NumberType, NewTagged(runTag, NumberType), false},
		{"tagged to tagged", NewTagged(runTag, NumberType), NewTagged(runTag, NumberType), true},
		{"tagged to maybe tagged", NewTagged(runTag, NumberType), NewMaybe(NewTagged(runTag, NumberType)), true},
		{"tagged to union with tagged", NewTagged(runTag, NumberType), NewUnion(StringType, NewTagged(runTag, NumberType)), true},
		{"tagged list element to maybe tagged", NewList(NewTagged(runTag, NumberType)), NewList(NewMaybe(NewTagged(runTag, NumberType))), true},
		{"tagged to maybe tagged wrong tag", NewTagged(NewDict(P("step", NumberType)), NumberType), NewMaybe(NewTagged(runTag, NumberType)), false},
		{"union src all members", NewUnion(NumberType, StringType), NumberType, false},
		{"union dst any member", NumberType, NewUnion(NumberType, StringType), true},
		{"list covariant", NewList(NumberType), NewList(NewMaybe(NumberType)), true},
		{"list bounds implied", NewListBounded(NumberType, 2, 2), NewListBounded(NumberType, 1, 5), true},
		{"list bounds missing", NewList(NumberType), NewListBounded(NumberType, 1, -1), false},
		{"dict width", NewDict(P("a", NumberType), P("b", StringType)), NewDict(P("a", NumberType)), true},
		{"dict missing required", NewDict(P("b", StringType)), NewDict(P("a", NumberType)), false},
		{"dict missing nullable", NewDict(), NewDict(P("a", NewMaybe(NumberType))), true},
		{"const to underlying", NewConst(nil, Str("x")), StringType, true},
		{"const to const", NewConst(nil, Str("x")), NewConst(nil, Str("x")), true},
		{"const mismatch", NewConst(nil, Str("x")), NewConst(nil, Str("y")), false},
		{
			"function contravariant",
			NewFunction([]Prop{P("row", AnyType)}, NumberType),
			NewFunction([]Prop{P("row", StringType)}, NewMaybe(NumberType)),
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAssignable(tt.src, tt.dst))
		})
	}
}

func TestNonNullable(t *testing.T) {
	assert.True(t, TypesEqual(NumberType, NonNullable(NewMaybe(NumberType))))
	assert.True(t, TypesEqual(InvalidType, NonNullable(NoneType)))

	runTag := NewDict(P("run", RunType))
	got := NonNullable(NewTagged(runTag, NewMaybe(StringType)))
	assert.True(t, TypesEqual(NewTagged(runTag, StringType), got), "got %s", got)
}

func TestDetagType(t *testing.T) {
	runTag := NewDict(P("run", RunType))
	tagged := NewTagged(runTag, NewList(NewTagged(runTag, NumberType)))

	assert.True(t, TypesEqual(NewList(NewTagged(runTag, NumberType)), DetagType(tagged)))
	assert.True(t, TypesEqual(NewList(NumberType), DetagTypeDeep(tagged)))
}

func TestListObject(t *testing.T) {
	obj, ok := ListObject(NewMaybe(NewTagged(NewDict(), NewList(StringType))))
	assert.True(t, ok)
	assert.True(t, TypesEqual(StringType, obj))

	_, ok = ListObject(NumberType)
	assert.False(t, ok)
}

func TestTypeString(t *testing.T) {
	typ := NewList(NewMaybe(NewDict(P("a", NumberType), P("b", StringType))))
	assert.Equal(t, "list<maybe<dict{a: number, b: string}>>", typ.String())
	assert.Equal(t, "list<number, 1..3>", NewListBounded(NumberType, 1, 3).String())
}

func TestTypeOf(t *testing.T) {
	v := Array{
		Object{"a": Num(1)},
		Object{"a": Null{}},
	}
	got := TypeOf(v)
	expected := NewList(NewUnion(NewDict(P("a", NumberType)), NewDict(P("a", NoneType))))
	assert.True(t, TypesEqual(expected, got), "got %s", got)

	assert.True(t, TypesEqual(NewList(InvalidType), TypeOf(Array{})))

	tagged := WithTag(Object{"run": Ref{Kind: "run", Digest: "r"}}, Num(1))
	assert.True(t, TypesEqual(NewTagged(NewDict(P("run", RunType)), NumberType), TypeOf(tagged)))
}
