package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// ParseJSON decodes plain JSON into a Value. null becomes Null.
// Reserved envelopes ({"_ref":…}) are decoded back into Refs so that
// values written with MarshalCanonical round-trip through storage.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromGo(raw)
}

// FromGo converts decoded JSON/YAML/CUE data into a Value.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return Str(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number out of range: %s", val)
		}
		return Num(f), nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("non-finite number: %v", val)
		}
		return Num(val), nil
	case float32:
		return FromGo(float64(val))
	case int:
		return Num(val), nil
	case int64:
		return Num(val), nil
	case uint64:
		return Num(val), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			e, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = e
		}
		return arr, nil
	case map[string]any:
		if ref, ok := refFromEnvelope(val); ok {
			return ref, nil
		}
		obj := make(Object, len(val))
		for k, elem := range val {
			e, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = e
		}
		return obj, nil
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, elem := range val {
			m[fmt.Sprint(k)] = elem
		}
		return FromGo(m)
	}
	return nil, fmt.Errorf("unsupported type: %T", v)
}

func refFromEnvelope(m map[string]any) (Ref, bool) {
	if len(m) != 1 {
		return Ref{}, false
	}
	inner, ok := m["_ref"].(map[string]any)
	if !ok {
		return Ref{}, false
	}
	kind, _ := inner["kind"].(string)
	digest, _ := inner["digest"].(string)
	path, _ := inner["path"].(string)
	if kind == "" || digest == "" {
		return Ref{}, false
	}
	return Ref{Kind: kind, Digest: digest, Path: path}, true
}

// MustFromGo is like FromGo but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFromGo(v any) Value {
	out, err := FromGo(v)
	if err != nil {
		panic(err)
	}
	return out
}
