package ir

import (
	"math"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface representing runtime values flowing through
// the graph. Only the types in this file implement it.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Null is the absent value.
type Null struct{}

func (Null) irValue() {}

// Str is a string value.
type Str string

func (Str) irValue() {}

// Num is a numeric value.
type Num float64

func (Num) irValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) irValue() {}

// Array is an ordered list of values.
type Array []Value

func (Array) irValue() {}

// Object is a string-keyed record. Use SortedKeys() for deterministic
// iteration.
type Object map[string]Value

func (Object) irValue() {}

// TaggedValue carries provenance metadata alongside a value.
// Construct with WithTag so that tag chains mirror NewTagged.
type TaggedValue struct {
	Tag   Value
	Value Value
}

func (TaggedValue) irValue() {}

// Ref is a content-addressed reference to a backend object (a run, a file).
// Digest identifies the content; Path is informational.
type Ref struct {
	Kind   string
	Digest string
	Path   string
}

func (Ref) irValue() {}

// TypeValue carries a Type as a value. Type-only operations return these.
type TypeValue struct {
	T Type
}

func (TypeValue) irValue() {}

// FuncValue is a function literal: a body node evaluated with Params bound
// in a new stack frame. It is only ever an operation input.
type FuncValue struct {
	Params []string
	Body   Node
}

func (FuncValue) irValue() {}

// Pair is a key/value pair for Object construction.
type Pair struct {
	Key   string
	Value Value
}

// KV creates a Pair.
func KV(key string, v Value) Pair {
	return Pair{Key: key, Value: v}
}

// NewObject creates an Object from pairs.
func NewObject(pairs ...Pair) Object {
	obj := make(Object, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// WithTag attaches a tag to a value. This is the value-level twin of
// NewTagged: an already tagged value gets its tag chain extended rather than
// being nested, so runtime tag shape always mirrors the Type.
func WithTag(tag, v Value) Value {
	if inner, ok := v.(TaggedValue); ok {
		return TaggedValue{Tag: WithTag(inner.Tag, tag), Value: inner.Value}
	}
	return TaggedValue{Tag: tag, Value: v}
}

// Detag strips every outer tag layer. Detag is idempotent.
func Detag(v Value) Value {
	for {
		tv, ok := v.(TaggedValue)
		if !ok {
			return v
		}
		v = tv.Value
	}
}

// DetagDeep strips tags everywhere inside v.
func DetagDeep(v Value) Value {
	switch vv := v.(type) {
	case TaggedValue:
		return DetagDeep(vv.Value)
	case Array:
		out := make(Array, len(vv))
		for i, e := range vv {
			out[i] = DetagDeep(e)
		}
		return out
	case Object:
		out := make(Object, len(vv))
		for k, e := range vv {
			out[k] = DetagDeep(e)
		}
		return out
	}
	return v
}

// IsNull reports whether v is absent, looking through tags.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := Detag(v).(Null)
	return ok
}

// Truthy reports whether a (detagged) value counts as true for filters.
func Truthy(v Value) bool {
	switch vv := Detag(v).(type) {
	case Bool:
		return bool(vv)
	case Num:
		return vv != 0 && !math.IsNaN(float64(vv))
	case Str:
		return vv != ""
	case Array:
		return len(vv) > 0
	case Object:
		return len(vv) > 0
	case Ref, TypeValue:
		return true
	}
	return false
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	if len(a16) < len(b16) {
		return -1
	}
	if len(a16) > len(b16) {
		return 1
	}
	return 0
}

// ValuesEqual reports deep equality. Tags are significant.
func ValuesEqual(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Null:
		_, ok := b.(Null)
		return ok
	case Str:
		bv, ok := b.(Str)
		return ok && av == bv
	case Num:
		bv, ok := b.(Num)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Ref:
		bv, ok := b.(Ref)
		return ok && av == bv
	case TypeValue:
		bv, ok := b.(TypeValue)
		return ok && TypesEqual(av.T, bv.T)
	case FuncValue:
		bv, ok := b.(FuncValue)
		return ok && slices.Equal(av.Params, bv.Params) && av.Body == bv.Body
	case TaggedValue:
		bv, ok := b.(TaggedValue)
		return ok && ValuesEqual(av.Tag, bv.Tag) && ValuesEqual(av.Value, bv.Value)
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !ValuesEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, e := range av {
			other, found := bv[k]
			if !found || !ValuesEqual(e, other) {
				return false
			}
		}
		return true
	}
	return false
}

// ValueString renders a value for diagnostics. It never fails; values that
// cannot be canonically encoded render as the encoding error.
func ValueString(v Value) string {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return string(data)
}
