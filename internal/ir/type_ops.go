package ir

// TypesEqual reports structural equality of two types.
// Union member order is not significant; property order is.
func TypesEqual(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch at := a.(type) {
	case Plain:
		return at.Name == b.(Plain).Name
	case Maybe:
		return TypesEqual(at.Inner, b.(Maybe).Inner)
	case Tagged:
		bt := b.(Tagged)
		return TypesEqual(at.Tag, bt.Tag) && TypesEqual(at.Value, bt.Value)
	case List:
		bt := b.(List)
		return TypesEqual(at.Object, bt.Object) &&
			boundsEqual(at.MinLen, bt.MinLen) &&
			boundsEqual(at.MaxLen, bt.MaxLen)
	case Union:
		bt := b.(Union)
		if len(at.Members) != len(bt.Members) {
			return false
		}
		for _, m := range at.Members {
			if !containsType(bt.Members, m) {
				return false
			}
		}
		return true
	case TypedDict:
		return propsEqual(at.Props, b.(TypedDict).Props)
	case Function:
		bt := b.(Function)
		return propsEqual(at.Inputs, bt.Inputs) && TypesEqual(at.Output, bt.Output)
	case Const:
		bt := b.(Const)
		return TypesEqual(at.Type, bt.Type) && ValuesEqual(at.Val, bt.Val)
	}
	return false
}

func boundsEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func containsType(list []Type, t Type) bool {
	for _, m := range list {
		if TypesEqual(m, t) {
			return true
		}
	}
	return false
}

func propsEqual(a, b []Prop) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key != b[i].Key || !TypesEqual(a[i].Type, b[i].Type) {
			return false
		}
	}
	return true
}

// IsAssignable reports whether every value of src is a valid value of dst.
//
// Rules:
//   - any accepts everything; invalid (bottom) is assignable to everything
//   - tags on src are transparent; a tagged dst requires a tagged src
//   - Maybe(x) is treated as x | none
//   - lists are covariant, and dst length bounds must be implied by src bounds
//   - dicts use width subtyping; a nullable dst property may be missing in src
//   - functions are contravariant in inputs and covariant in output
func IsAssignable(src, dst Type) bool {
	if src == nil || dst == nil {
		return false
	}
	if IsPlain(dst, NameAny) || IsPlain(src, NameInvalid) {
		return true
	}

	// Decompose src first so that every alternative must be accepted.
	switch s := src.(type) {
	case Union:
		for _, m := range s.Members {
			if !IsAssignable(m, dst) {
				return false
			}
		}
		return true
	case Maybe:
		return IsAssignable(NoneType, dst) && IsAssignable(s.Inner, dst)
	case Const:
		if d, ok := dst.(Const); ok {
			return ValuesEqual(s.Val, d.Val)
		}
		return IsAssignable(s.Type, dst)
	case Tagged:
		// A tagged dst may sit inside a Maybe or Union, so try the members
		// while src still carries its tag.
		switch d := dst.(type) {
		case Tagged:
			if IsAssignable(s.Tag, d.Tag) && IsAssignable(s.Value, d.Value) {
				return true
			}
		case Maybe:
			if IsAssignable(src, d.Inner) {
				return true
			}
		case Union:
			for _, m := range d.Members {
				if IsAssignable(src, m) {
					return true
				}
			}
		}
		return IsAssignable(s.Value, dst)
	}

	switch d := dst.(type) {
	case Union:
		for _, m := range d.Members {
			if IsAssignable(src, m) {
				return true
			}
		}
		return false
	case Maybe:
		return IsPlain(src, NameNone) || IsAssignable(src, d.Inner)
	case Tagged, Const:
		return false
	case Plain:
		s, ok := src.(Plain)
		return ok && s.Name == d.Name
	case List:
		s, ok := src.(List)
		if !ok || !IsAssignable(s.Object, d.Object) {
			return false
		}
		if d.MinLen != nil && (s.MinLen == nil || *s.MinLen < *d.MinLen) {
			return false
		}
		if d.MaxLen != nil && (s.MaxLen == nil || *s.MaxLen > *d.MaxLen) {
			return false
		}
		return true
	case TypedDict:
		s, ok := src.(TypedDict)
		if !ok {
			return false
		}
		for _, p := range d.Props {
			st, found := s.Lookup(p.Key)
			if !found {
				if IsNullable(p.Type) {
					continue
				}
				return false
			}
			if !IsAssignable(st, p.Type) {
				return false
			}
		}
		return true
	case Function:
		s, ok := src.(Function)
		if !ok || len(s.Inputs) != len(d.Inputs) {
			return false
		}
		for i := range d.Inputs {
			if !IsAssignable(d.Inputs[i].Type, s.Inputs[i].Type) {
				return false
			}
		}
		return IsAssignable(s.Output, d.Output)
	}
	return false
}
