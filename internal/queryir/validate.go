package queryir

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/opgraph/internal/ir"
)

// identifier matches source and field names, optionally qualified once.
// Backends interpolate names into queries, so nothing else is accepted.
var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidationResult lists every problem found in a query.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	Problems []string
}

// Err returns the problems as one error, or nil when the query is valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return errors.New("invalid query: " + strings.Join(r.Problems, "; "))
}

// Validate checks a query against the fragment rules:
//  1. Sources and fields are plain identifiers
//  2. Bindings are explicit (no SELECT *) and result keys are unique
//  3. Equals compares against a scalar literal, never Null
//  4. Limits are non-negative
//  5. Joins have an On condition
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{problems: []string{}}
	v.validateQuery(query)
	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addProblem("nil query")
	case Select:
		v.validateSelect(query)
	case Join:
		v.validateJoin(query)
	default:
		v.addProblem("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if !identifier.MatchString(sel.From) || strings.Contains(sel.From, ".") {
		v.addProblem("invalid source name %q", sel.From)
	}
	if len(sel.Bindings) == 0 {
		v.addProblem("empty bindings for %s - fields must be selected explicitly", sel.From)
	}
	for field, key := range sel.Bindings {
		v.validateField(field)
		if key == "" {
			v.addProblem("field %q bound to an empty result key", field)
		}
	}
	for _, field := range sel.OrderBy {
		v.validateField(field)
	}
	if sel.Limit < 0 {
		v.addProblem("negative limit %d", sel.Limit)
	}
	v.validatePredicate(sel.Filter)
}

func (v *validator) validateJoin(join Join) {
	v.validateSelect(join.Left)
	v.validateSelect(join.Right)
	if join.On == nil {
		v.addProblem("join of %s and %s has no condition", join.Left.From, join.Right.From)
	}
	v.validatePredicate(join.On)

	keys := make(map[string]bool, len(join.Left.Bindings))
	for _, key := range join.Left.Bindings {
		keys[key] = true
	}
	for _, key := range join.Right.Bindings {
		if keys[key] {
			v.addProblem("result key %q bound on both sides of the join", key)
		}
	}
}

func (v *validator) validateField(field string) {
	if !identifier.MatchString(field) {
		v.addProblem("invalid field name %q", field)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.validateField(pred.Field)
		switch pred.Value.(type) {
		case ir.Str, ir.Num, ir.Bool:
		case ir.Null, nil:
			v.addProblem("field %q compared to null", pred.Field)
		default:
			v.addProblem("field %q compared to non-scalar %T", pred.Field, pred.Value)
		}
	case FieldEquals:
		v.validateField(pred.Left)
		v.validateField(pred.Right)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	default:
		v.addProblem("unknown predicate type: %T", p)
	}
}
