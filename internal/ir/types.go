package ir

import (
	"fmt"
	"strings"
)

// Kind is the discriminant of a Type.
type Kind int

const (
	KindPlain Kind = iota
	KindMaybe
	KindTagged
	KindList
	KindUnion
	KindTypedDict
	KindFunction
	KindConst
)

var kindNames = map[Kind]string{
	KindPlain:     "plain",
	KindMaybe:     "maybe",
	KindTagged:    "tagged",
	KindList:      "list",
	KindUnion:     "union",
	KindTypedDict: "typedDict",
	KindFunction:  "function",
	KindConst:     "const",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Type is a sealed interface over the closed set of type variants.
// Only Plain, Maybe, Tagged, List, Union, TypedDict, Function and Const
// implement it.
type Type interface {
	Kind() Kind
	String() string
	typeNode() // Sealed
}

// Plain type names.
const (
	NameAny     = "any"
	NameInvalid = "invalid" // bottom: no value inhabits it
	NameNone    = "none"
	NameNumber  = "number"
	NameString  = "string"
	NameBoolean = "boolean"
	NameType    = "type"
	NameRun     = "run"
	NameFile    = "file"
	NameTable   = "table"
	NameRef     = "ref"
)

// Plain is a named scalar or opaque domain type.
type Plain struct {
	Name string
}

func (Plain) typeNode()        {}
func (Plain) Kind() Kind       { return KindPlain }
func (t Plain) String() string { return t.Name }

// Maybe is a type that may be absent. Construct with NewMaybe.
type Maybe struct {
	Inner Type
}

func (Maybe) typeNode()        {}
func (Maybe) Kind() Kind       { return KindMaybe }
func (t Maybe) String() string { return "maybe<" + t.Inner.String() + ">" }

// Tagged is a value type carrying provenance metadata of type Tag.
// Construct with NewTagged so that tag chains stay canonical.
type Tagged struct {
	Tag   Type
	Value Type
}

func (Tagged) typeNode()  {}
func (Tagged) Kind() Kind { return KindTagged }
func (t Tagged) String() string {
	return "tagged<" + t.Tag.String() + ", " + t.Value.String() + ">"
}

// List is a homogeneous list type with optional length bounds.
type List struct {
	Object Type
	MinLen *int
	MaxLen *int
}

func (List) typeNode()  {}
func (List) Kind() Kind { return KindList }
func (t List) String() string {
	var b strings.Builder
	b.WriteString("list<")
	b.WriteString(t.Object.String())
	if t.MinLen != nil || t.MaxLen != nil {
		b.WriteString(", ")
		if t.MinLen != nil {
			fmt.Fprintf(&b, "%d", *t.MinLen)
		}
		b.WriteString("..")
		if t.MaxLen != nil {
			fmt.Fprintf(&b, "%d", *t.MaxLen)
		}
	}
	b.WriteString(">")
	return b.String()
}

// Union is a deduplicated set of alternatives. Construct with NewUnion.
type Union struct {
	Members []Type
}

func (Union) typeNode()  {}
func (Union) Kind() Kind { return KindUnion }
func (t Union) String() string {
	parts := make([]string, len(t.Members))
	for i, m := range t.Members {
		parts[i] = m.String()
	}
	return "union<" + strings.Join(parts, " | ") + ">"
}

// Prop is a key/type pair. Props keep declaration order.
type Prop struct {
	Key  string
	Type Type
}

// P is a shorthand for Prop.
// Example: NewDict(P("a", NumberType), P("b", StringType))
func P(key string, t Type) Prop {
	return Prop{Key: key, Type: t}
}

// TypedDict is a record type with ordered properties.
type TypedDict struct {
	Props []Prop
}

func (TypedDict) typeNode()  {}
func (TypedDict) Kind() Kind { return KindTypedDict }
func (t TypedDict) String() string {
	return "dict{" + propsString(t.Props) + "}"
}

// Lookup returns the type of a property.
func (t TypedDict) Lookup(key string) (Type, bool) {
	for _, p := range t.Props {
		if p.Key == key {
			return p.Type, true
		}
	}
	return nil, false
}

// Keys returns the property names in declaration order.
func (t TypedDict) Keys() []string {
	keys := make([]string, len(t.Props))
	for i, p := range t.Props {
		keys[i] = p.Key
	}
	return keys
}

// Function is the type of a function-valued argument (map/filter callbacks).
type Function struct {
	Inputs []Prop
	Output Type
}

func (Function) typeNode()  {}
func (Function) Kind() Kind { return KindFunction }
func (t Function) String() string {
	return "fn(" + propsString(t.Inputs) + ") -> " + t.Output.String()
}

// Const is a type inhabited by exactly one known value.
type Const struct {
	Type Type
	Val  Value
}

func (Const) typeNode()  {}
func (Const) Kind() Kind { return KindConst }
func (t Const) String() string {
	return "const<" + t.Type.String() + ", " + ValueString(t.Val) + ">"
}

func propsString(props []Prop) string {
	parts := make([]string, len(props))
	for i, p := range props {
		parts[i] = p.Key + ": " + p.Type.String()
	}
	return strings.Join(parts, ", ")
}

// Well-known plain types.
var (
	AnyType     Type = Plain{Name: NameAny}
	InvalidType Type = Plain{Name: NameInvalid}
	NoneType    Type = Plain{Name: NameNone}
	NumberType  Type = Plain{Name: NameNumber}
	StringType  Type = Plain{Name: NameString}
	BooleanType Type = Plain{Name: NameBoolean}
	TypeType    Type = Plain{Name: NameType}
	RunType     Type = Plain{Name: NameRun}
	FileType    Type = Plain{Name: NameFile}
	TableType   Type = Plain{Name: NameTable}
	RefType     Type = Plain{Name: NameRef}
)

// IsPlain reports whether t is the plain type with the given name.
func IsPlain(t Type, name string) bool {
	p, ok := t.(Plain)
	return ok && p.Name == name
}

// NewMaybe makes t nullable. Maybe(Maybe(x)) collapses to Maybe(x),
// Maybe(none) is none and Maybe(invalid) is none.
func NewMaybe(t Type) Type {
	switch tt := t.(type) {
	case Maybe:
		return tt
	case Plain:
		if tt.Name == NameNone || tt.Name == NameInvalid {
			return NoneType
		}
		if tt.Name == NameAny {
			return tt
		}
	}
	return Maybe{Inner: t}
}

// NewTagged attaches a tag type to a value type. When the value is already
// tagged the tags are chained instead of nested around the value:
// NewTagged(new, Tagged(old, v)) is Tagged(Tagged(old, new), v). Tag lookups
// check the newest tag first and fall back to older ones.
func NewTagged(tag, value Type) Type {
	if inner, ok := value.(Tagged); ok {
		return Tagged{Tag: NewTagged(inner.Tag, tag), Value: inner.Value}
	}
	return Tagged{Tag: tag, Value: value}
}

// NewList creates an unbounded list type.
func NewList(object Type) Type {
	return List{Object: object}
}

// NewListBounded creates a list type with length bounds. A negative bound
// means unbounded on that side.
func NewListBounded(object Type, minLen, maxLen int) Type {
	l := List{Object: object}
	if minLen >= 0 {
		l.MinLen = &minLen
	}
	if maxLen >= 0 {
		l.MaxLen = &maxLen
	}
	return l
}

// NewDict creates a TypedDict from ordered properties.
func NewDict(props ...Prop) Type {
	return TypedDict{Props: props}
}

// NewFunction creates a function type.
func NewFunction(inputs []Prop, output Type) Type {
	return Function{Inputs: inputs, Output: output}
}

// NewConst creates a const type. The underlying type is inferred when
// valType is nil.
func NewConst(valType Type, val Value) Type {
	if valType == nil {
		valType = TypeOf(val)
	}
	return Const{Type: valType, Val: val}
}

// NewUnion builds a canonical union:
//   - nested unions are flattened and members deduplicated structurally,
//     keeping first-seen order
//   - invalid members are dropped
//   - none members (and Maybe members) make the result nullable, expressed
//     as Maybe(rest) rather than a none member
//   - a single remaining member is returned as-is
func NewUnion(members ...Type) Type {
	var flat []Type
	nullable := false
	var add func(t Type)
	add = func(t Type) {
		switch tt := t.(type) {
		case nil:
			return
		case Union:
			for _, m := range tt.Members {
				add(m)
			}
		case Maybe:
			nullable = true
			add(tt.Inner)
		case Plain:
			switch tt.Name {
			case NameInvalid:
				return
			case NameNone:
				nullable = true
				return
			}
			flat = appendUnique(flat, t)
		default:
			flat = appendUnique(flat, t)
		}
	}
	for _, m := range members {
		add(m)
	}

	var out Type
	switch len(flat) {
	case 0:
		if nullable {
			return NoneType
		}
		return InvalidType
	case 1:
		out = flat[0]
	default:
		for _, m := range flat {
			if IsPlain(m, NameAny) {
				return AnyType
			}
		}
		out = Union{Members: flat}
	}
	if nullable {
		return NewMaybe(out)
	}
	return out
}

func appendUnique(list []Type, t Type) []Type {
	for _, existing := range list {
		if TypesEqual(existing, t) {
			return list
		}
	}
	return append(list, t)
}

// IsNullable reports whether absent values inhabit t.
func IsNullable(t Type) bool {
	switch tt := t.(type) {
	case Maybe:
		return true
	case Plain:
		return tt.Name == NameNone
	case Union:
		for _, m := range tt.Members {
			if IsNullable(m) {
				return true
			}
		}
	case Tagged:
		return IsNullable(tt.Value)
	case Const:
		_, isNull := tt.Val.(Null)
		return isNull
	}
	return false
}

// NonNullable removes absence from the outermost layer of t.
func NonNullable(t Type) Type {
	switch tt := t.(type) {
	case Maybe:
		return NonNullable(tt.Inner)
	case Plain:
		if tt.Name == NameNone {
			return InvalidType
		}
	case Union:
		members := make([]Type, 0, len(tt.Members))
		for _, m := range tt.Members {
			members = append(members, NonNullable(m))
		}
		return NewUnion(members...)
	case Tagged:
		return Tagged{Tag: tt.Tag, Value: NonNullable(tt.Value)}
	}
	return t
}

// DetagType strips every outer Tagged layer of t. It does not look inside
// Maybe, List or Union.
func DetagType(t Type) Type {
	for {
		tt, ok := t.(Tagged)
		if !ok {
			return t
		}
		t = tt.Value
	}
}

// DetagTypeDeep strips Tagged layers everywhere inside t.
func DetagTypeDeep(t Type) Type {
	switch tt := t.(type) {
	case Tagged:
		return DetagTypeDeep(tt.Value)
	case Maybe:
		return NewMaybe(DetagTypeDeep(tt.Inner))
	case List:
		return List{Object: DetagTypeDeep(tt.Object), MinLen: tt.MinLen, MaxLen: tt.MaxLen}
	case Union:
		members := make([]Type, len(tt.Members))
		for i, m := range tt.Members {
			members[i] = DetagTypeDeep(m)
		}
		return NewUnion(members...)
	case TypedDict:
		props := make([]Prop, len(tt.Props))
		for i, p := range tt.Props {
			props[i] = Prop{Key: p.Key, Type: DetagTypeDeep(p.Type)}
		}
		return TypedDict{Props: props}
	}
	return t
}

// ConstValueType returns the underlying type of a Const, or t itself.
func ConstValueType(t Type) Type {
	if c, ok := t.(Const); ok {
		return c.Type
	}
	return t
}

// ListObject returns the element type of t when t is (possibly nullable,
// possibly tagged) list, and false otherwise.
func ListObject(t Type) (Type, bool) {
	switch tt := ConstValueType(t).(type) {
	case List:
		return tt.Object, true
	case Maybe:
		return ListObject(tt.Inner)
	case Tagged:
		return ListObject(tt.Value)
	}
	return nil, false
}

// IsListLike reports whether t is a list after stripping Maybe and Tagged
// layers.
func IsListLike(t Type) bool {
	_, ok := ListObject(t)
	return ok
}
