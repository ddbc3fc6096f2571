package store

import (
	"fmt"

	"github.com/roach88/opgraph/internal/ir"
)

// jsonColumns are stored as canonical JSON TEXT and decoded on read.
var jsonColumns = map[string]bool{
	"summary": true,
	"row":     true,
}

// marshalValue converts a value to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalValue(v ir.Value) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// unmarshalValue parses JSON TEXT written by marshalValue.
func unmarshalValue(data string) (ir.Value, error) {
	if data == "" {
		return ir.Null{}, nil
	}
	v, err := ir.ParseJSON([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

// columnValue converts a scanned SQLite cell to a value. JSON columns are
// decoded; everything else maps by storage class.
func columnValue(column string, cell any) (ir.Value, error) {
	if cell == nil {
		return ir.Null{}, nil
	}
	if jsonColumns[column] {
		switch c := cell.(type) {
		case string:
			return unmarshalValue(c)
		case []byte:
			return unmarshalValue(string(c))
		}
	}
	switch c := cell.(type) {
	case int64:
		return ir.Num(c), nil
	case float64:
		return ir.Num(c), nil
	case bool:
		return ir.Bool(c), nil
	case string:
		return ir.Str(c), nil
	case []byte:
		return ir.Str(c), nil
	}
	return nil, fmt.Errorf("unsupported column type %T for %s", cell, column)
}
