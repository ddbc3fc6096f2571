package algebra

import "github.com/roach88/opgraph/internal/ir"

// DistributeTag pushes the tag of a tagged array onto every element, so
// element-wise operations see each element's full provenance. Other values
// are returned unchanged.
func DistributeTag(v ir.Value) ir.Value {
	tv, ok := v.(ir.TaggedValue)
	if !ok {
		return v
	}
	arr, ok := ir.Detag(tv.Value).(ir.Array)
	if !ok {
		return v
	}
	out := make(ir.Array, len(arr))
	for i, e := range arr {
		out[i] = ir.WithTag(tv.Tag, e)
	}
	return out
}

// DistributeTagType is the type-level twin of DistributeTag. It looks
// through Maybe and Union.
func DistributeTagType(t ir.Type) ir.Type {
	switch tt := t.(type) {
	case ir.Maybe:
		return ir.NewMaybe(DistributeTagType(tt.Inner))
	case ir.Union:
		members := make([]ir.Type, len(tt.Members))
		for i, m := range tt.Members {
			members[i] = DistributeTagType(m)
		}
		return ir.NewUnion(members...)
	case ir.Tagged:
		l, ok := tt.Value.(ir.List)
		if !ok {
			return t
		}
		return ir.List{Object: ir.NewTagged(tt.Tag, l.Object), MinLen: l.MinLen, MaxLen: l.MaxLen}
	}
	return t
}

// FindTag searches v outward-in for a tag holding key. Within a tag chain
// the newest tag wins.
func FindTag(v ir.Value, key string) (ir.Value, bool) {
	for {
		tv, ok := v.(ir.TaggedValue)
		if !ok {
			return nil, false
		}
		if found, ok := lookupTagChain(tv.Tag, key); ok {
			return found, true
		}
		v = tv.Value
	}
}

// FindTagType is the type-level twin of FindTag. A Maybe input yields a
// Maybe result; union members without the tag contribute none.
func FindTagType(t ir.Type, key string) (ir.Type, bool) {
	switch tt := t.(type) {
	case ir.Const:
		return FindTagType(tt.Type, key)
	case ir.Maybe:
		found, ok := FindTagType(tt.Inner, key)
		if !ok {
			return nil, false
		}
		return ir.NewMaybe(found), true
	case ir.Union:
		var members []ir.Type
		seen := false
		for _, m := range tt.Members {
			found, ok := FindTagType(m, key)
			if !ok {
				members = append(members, ir.NoneType)
				continue
			}
			seen = true
			members = append(members, found)
		}
		if !seen {
			return nil, false
		}
		return ir.NewUnion(members...), true
	case ir.Tagged:
		if found, ok := lookupTagTypeChain(tt.Tag, key); ok {
			return found, true
		}
		return FindTagType(tt.Value, key)
	}
	return nil, false
}

// lookupTagChain searches a tag value. A chained tag (a TaggedValue whose
// Value is the newer tag) is searched newest first.
func lookupTagChain(tag ir.Value, key string) (ir.Value, bool) {
	switch tt := tag.(type) {
	case ir.TaggedValue:
		if v, ok := lookupTagChain(tt.Value, key); ok {
			return v, true
		}
		return lookupTagChain(tt.Tag, key)
	case ir.Object:
		v, ok := tt[key]
		return v, ok
	}
	return nil, false
}

func lookupTagTypeChain(tag ir.Type, key string) (ir.Type, bool) {
	switch tt := tag.(type) {
	case ir.Tagged:
		if t, ok := lookupTagTypeChain(tt.Value, key); ok {
			return t, true
		}
		return lookupTagTypeChain(tt.Tag, key)
	case ir.TypedDict:
		return tt.Lookup(key)
	}
	return nil, false
}
