package queryir

import "github.com/roach88/opgraph/internal/ir"

// Query represents an abstract query.
//
// This is a sealed interface - only types in this package implement it.
//
// Query types:
//   - Select: single source access with filtering and field bindings
//   - Join: inner join of two selects
//
// Every query produces rows: objects keyed by bound result names.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: field = literal value
//   - FieldEquals: field = field (join conditions)
//   - And: all predicates must be true
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select represents a single source access with filtering.
//
// Semantics:
//
//	SELECT <bindings> FROM <from> WHERE <filter> ORDER BY <orderBy> LIMIT <limit>
//
// Example:
//
//	Select{
//	  From:     "history",
//	  Filter:   Equals{Field: "run_id", Value: ir.Str("run-1")},
//	  Bindings: map[string]string{"row": "row"},
//	  OrderBy:  []string{"step"},
//	  Limit:    10,
//	}
//
// Produces rows: {"row": <value>}
type Select struct {
	From     string            // Source name (e.g., "runs")
	Filter   Predicate         // WHERE conditions (nil = no filter)
	Bindings map[string]string // source_field → result key
	OrderBy  []string          // Source fields; empty orders by id
	Limit    int               // Maximum rows; 0 = unlimited
}

func (Select) queryNode() {}

// Join represents an inner join of two selects.
//
// Semantics:
//
//	SELECT <left bindings>, <right bindings>
//	FROM <left.from> JOIN <right.from> ON <on>
//	WHERE <left.filter> AND <right.filter>
//
// Field names in On and in the sides' filters may be qualified with their
// source name ("runs.project_id") and must be when both sides have a field
// of the same name. Result keys of both sides must not collide. The join is
// ordered by the left side's order.
//
// Example:
//
//	Join{
//	  Left:  Select{From: "runs", Bindings: map[string]string{"runs.id": "id"}, OrderBy: []string{"runs.seq"}},
//	  Right: Select{From: "projects", Filter: Equals{Field: "projects.name", Value: ir.Str("mnist")},
//	    Bindings: map[string]string{"projects.name": "project"}},
//	  On:    FieldEquals{Left: "runs.project_id", Right: "projects.id"},
//	}
type Join struct {
	Left  Select
	Right Select
	On    Predicate // Join condition (required)
}

func (Join) queryNode() {}

// Equals represents a field-equals-literal predicate.
//
// Value must be a scalar: ir.Str, ir.Num or ir.Bool. Null never equals
// anything; compare against a sentinel value instead.
type Equals struct {
	Field string
	Value ir.Value
}

func (Equals) predicateNode() {}

// FieldEquals represents a field-equals-field predicate.
type FieldEquals struct {
	Left  string
	Right string
}

func (FieldEquals) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
// An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
