package algebra

import "github.com/roach88/opgraph/internal/ir"

// Scope carries the tags peeled on the way to the core, outermost first.
// Tag-consuming operations read provenance from it instead of from their
// input. A Scope is immutable; peeling a layer yields a new one.
type Scope struct {
	tags     []ir.Value
	tagTypes []ir.Type
}

func (s Scope) withTag(tag ir.Value) Scope {
	tags := make([]ir.Value, len(s.tags), len(s.tags)+1)
	copy(tags, s.tags)
	return Scope{tags: append(tags, tag), tagTypes: s.tagTypes}
}

func (s Scope) withTagType(tag ir.Type) Scope {
	types := make([]ir.Type, len(s.tagTypes), len(s.tagTypes)+1)
	copy(types, s.tagTypes)
	return Scope{tags: s.tags, tagTypes: append(types, tag)}
}

// Tags returns the peeled tag values, outermost first.
func (s Scope) Tags() []ir.Value {
	return s.tags
}

// TagTypes returns the peeled tag types, outermost first.
func (s Scope) TagTypes() []ir.Type {
	return s.tagTypes
}

// Tag looks up key in the peeled tags, innermost first.
func (s Scope) Tag(key string) (ir.Value, bool) {
	for i := len(s.tags) - 1; i >= 0; i-- {
		if v, ok := lookupTagChain(s.tags[i], key); ok {
			return v, true
		}
	}
	return nil, false
}

// TagType looks up key in the peeled tag types, innermost first.
func (s Scope) TagType(key string) (ir.Type, bool) {
	for i := len(s.tagTypes) - 1; i >= 0; i-- {
		if t, ok := lookupTagTypeChain(s.tagTypes[i], key); ok {
			return t, true
		}
	}
	return nil, false
}
