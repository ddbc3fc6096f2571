package ir

// TypeOf infers the most specific type of a concrete value.
// Array element types are unioned; an empty array is list<invalid>.
func TypeOf(v Value) Type {
	switch vv := v.(type) {
	case nil, Null:
		return NoneType
	case Str:
		return StringType
	case Num:
		return NumberType
	case Bool:
		return BooleanType
	case Ref:
		switch vv.Kind {
		case NameRun, NameFile, NameTable:
			return Plain{Name: vv.Kind}
		}
		return RefType
	case TypeValue:
		return TypeType
	case FuncValue:
		inputs := make([]Prop, len(vv.Params))
		for i, p := range vv.Params {
			inputs[i] = P(p, AnyType)
		}
		out := AnyType
		if vv.Body != nil {
			out = vv.Body.NodeType()
		}
		return NewFunction(inputs, out)
	case TaggedValue:
		return NewTagged(TypeOf(vv.Tag), TypeOf(vv.Value))
	case Array:
		members := make([]Type, len(vv))
		for i, e := range vv {
			members[i] = TypeOf(e)
		}
		return NewList(NewUnion(members...))
	case Object:
		keys := vv.SortedKeys()
		props := make([]Prop, len(keys))
		for i, k := range keys {
			props[i] = P(k, TypeOf(vv[k]))
		}
		return TypedDict{Props: props}
	}
	return AnyType
}

// TypeToValue encodes a type as a plain JSON-shaped value, e.g.
// {"type":"list","objectType":"number"}. Plain types encode as their name.
func TypeToValue(t Type) Value {
	switch tt := t.(type) {
	case Plain:
		return Str(tt.Name)
	case Maybe:
		return Object{"type": Str("maybe"), "inner": TypeToValue(tt.Inner)}
	case Tagged:
		return Object{"type": Str("tagged"), "tag": TypeToValue(tt.Tag), "value": TypeToValue(tt.Value)}
	case List:
		obj := Object{"type": Str("list"), "objectType": TypeToValue(tt.Object)}
		if tt.MinLen != nil {
			obj["minLength"] = Num(*tt.MinLen)
		}
		if tt.MaxLen != nil {
			obj["maxLength"] = Num(*tt.MaxLen)
		}
		return obj
	case Union:
		members := make(Array, len(tt.Members))
		for i, m := range tt.Members {
			members[i] = TypeToValue(m)
		}
		return Object{"type": Str("union"), "members": members}
	case TypedDict:
		return Object{"type": Str("typedDict"), "propertyTypes": propsToValue(tt.Props)}
	case Function:
		return Object{"type": Str("function"), "inputTypes": propsToValue(tt.Inputs), "outputType": TypeToValue(tt.Output)}
	case Const:
		return Object{"type": Str("const"), "valType": TypeToValue(tt.Type), "val": tt.Val}
	}
	return Null{}
}

// propsToValue keeps declaration order by encoding props as a list of pairs.
func propsToValue(props []Prop) Value {
	out := make(Array, len(props))
	for i, p := range props {
		out[i] = Array{Str(p.Key), TypeToValue(p.Type)}
	}
	return out
}
