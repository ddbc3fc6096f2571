package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opgraph/internal/ir"
)

func TestValidate_ValidSelect(t *testing.T) {
	query := Select{
		From:     "history",
		Filter:   Equals{Field: "run_id", Value: ir.Str("run-1")},
		Bindings: map[string]string{"row": "row"},
		OrderBy:  []string{"step"},
		Limit:    10,
	}

	result := Validate(query)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Problems)
	assert.NoError(t, result.Err())
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{"nil query", nil, "nil query"},
		{"empty bindings", Select{From: "runs"}, "empty bindings"},
		{"bad source", Select{From: "runs; DROP TABLE runs", Bindings: map[string]string{"id": "id"}}, "invalid source name"},
		{"bad field", Select{From: "runs", Bindings: map[string]string{"id, name": "id"}}, "invalid field name"},
		{"null compare", Select{From: "runs", Bindings: map[string]string{"id": "id"}, Filter: Equals{Field: "name", Value: ir.Null{}}}, "compared to null"},
		{"non-scalar compare", Select{From: "runs", Bindings: map[string]string{"id": "id"}, Filter: Equals{Field: "name", Value: ir.Array{}}}, "non-scalar"},
		{"negative limit", Select{From: "runs", Bindings: map[string]string{"id": "id"}, Limit: -1}, "negative limit"},
		{
			"join without condition",
			Join{
				Left:  Select{From: "runs", Bindings: map[string]string{"runs.id": "id"}},
				Right: Select{From: "projects", Bindings: map[string]string{"projects.name": "project"}},
			},
			"has no condition",
		},
		{
			"colliding result keys",
			Join{
				Left:  Select{From: "runs", Bindings: map[string]string{"runs.id": "id"}},
				Right: Select{From: "projects", Bindings: map[string]string{"projects.id": "id"}},
				On:    FieldEquals{Left: "runs.project_id", Right: "projects.id"},
			},
			"bound on both sides",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.query)
			assert.False(t, result.Valid)
			require.Error(t, result.Err())
			assert.Contains(t, result.Err().Error(), tt.want)
		})
	}
}

func TestValidate_NestedAnd(t *testing.T) {
	query := Select{
		From:     "files",
		Bindings: map[string]string{"digest": "digest"},
		Filter: And{Predicates: []Predicate{
			Equals{Field: "run_id", Value: ir.Str("r1")},
			And{Predicates: []Predicate{Equals{Field: "path", Value: ir.Null{}}}},
		}},
	}

	result := Validate(query)
	assert.False(t, result.Valid)
	assert.Len(t, result.Problems, 1, "nested predicates are validated")
}
