package queryir

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/opgraph/internal/ir"
)

// Source returns every row of the named source.
type Source func(name string) ([]ir.Object, error)

// Evaluate runs a query against in-memory rows. It follows the same
// semantics as the SQL compiler and exists for backends without a
// database.
func Evaluate(q Query, source Source) ([]ir.Value, error) {
	if err := Validate(q).Err(); err != nil {
		return nil, err
	}
	switch query := q.(type) {
	case Select:
		rows, err := selectRows(query, source)
		if err != nil {
			return nil, err
		}
		out := make([]ir.Value, len(rows))
		for i, row := range rows {
			out[i] = project(query, row)
		}
		return out, nil
	case Join:
		return evaluateJoin(query, source)
	}
	return nil, fmt.Errorf("unsupported query type: %T", q)
}

// selectRows returns the filtered, ordered and limited rows of a select.
func selectRows(sel Select, source Source) ([]ir.Object, error) {
	all, err := source(sel.From)
	if err != nil {
		return nil, err
	}
	var rows []ir.Object
	for _, row := range all {
		if matches(sel.Filter, func(field string) (ir.Value, bool) { return lookup(sel.From, row, field) }) {
			rows = append(rows, row)
		}
	}

	order := sel.OrderBy
	if len(order) == 0 {
		order = []string{"id"}
	}
	slices.SortStableFunc(rows, func(a, b ir.Object) int {
		for _, field := range order {
			av, _ := lookup(sel.From, a, field)
			bv, _ := lookup(sel.From, b, field)
			if c := compareScalars(av, bv); c != 0 {
				return c
			}
		}
		return 0
	})

	if sel.Limit > 0 && len(rows) > sel.Limit {
		rows = rows[:sel.Limit]
	}
	return rows, nil
}

func evaluateJoin(join Join, source Source) ([]ir.Value, error) {
	left := join.Left
	left.Limit = 0
	lrows, err := selectRows(left, source)
	if err != nil {
		return nil, err
	}
	rrows, err := selectRows(join.Right, source)
	if err != nil {
		return nil, err
	}

	var out []ir.Value
	for _, l := range lrows {
		for _, r := range rrows {
			get := func(field string) (ir.Value, bool) {
				if v, ok := lookup(join.Left.From, l, field); ok {
					return v, true
				}
				return lookup(join.Right.From, r, field)
			}
			if !matches(join.On, get) {
				continue
			}
			row := project(join.Left, l)
			for k, v := range project(join.Right, r) {
				row[k] = v
			}
			out = append(out, row)
			if join.Left.Limit > 0 && len(out) == join.Left.Limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// lookup resolves a possibly qualified field against a row of from.
func lookup(from string, row ir.Object, field string) (ir.Value, bool) {
	if src, name, ok := strings.Cut(field, "."); ok {
		if src != from {
			return nil, false
		}
		field = name
	}
	v, ok := row[field]
	return v, ok
}

func project(sel Select, row ir.Object) ir.Object {
	out := make(ir.Object, len(sel.Bindings))
	for field, key := range sel.Bindings {
		v, ok := lookup(sel.From, row, field)
		if !ok {
			v = ir.Null{}
		}
		out[key] = v
	}
	return out
}

func matches(p Predicate, get func(field string) (ir.Value, bool)) bool {
	switch pred := p.(type) {
	case nil:
		return true
	case Equals:
		v, ok := get(pred.Field)
		return ok && !ir.IsNull(v) && ir.ValuesEqual(v, pred.Value)
	case FieldEquals:
		l, lok := get(pred.Left)
		r, rok := get(pred.Right)
		return lok && rok && !ir.IsNull(l) && ir.ValuesEqual(l, r)
	case And:
		for _, sub := range pred.Predicates {
			if !matches(sub, get) {
				return false
			}
		}
		return true
	}
	return false
}

// compareScalars orders values the way SQLite does: nulls, then numbers,
// then strings.
func compareScalars(a, b ir.Value) int {
	rank := func(v ir.Value) int {
		switch v.(type) {
		case ir.Num, ir.Bool:
			return 1
		case ir.Str:
			return 2
		}
		return 0
	}
	if c := cmp.Compare(rank(a), rank(b)); c != 0 {
		return c
	}
	switch av := a.(type) {
	case ir.Num:
		if bv, ok := b.(ir.Num); ok {
			return cmp.Compare(av, bv)
		}
	case ir.Str:
		return strings.Compare(string(av), string(b.(ir.Str)))
	}
	return 0
}
