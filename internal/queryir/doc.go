// Package queryir provides the abstract query representation that domain
// operations hand to a backend.
//
// Operations never build SQL. They describe what they need as a Query and
// the backend compiles it (see package querysql) or evaluates it in memory
// (see Evaluate, used by the test backend):
//
//	[domain op] → [Query IR] → [SQLite backend]
//	                         → [in-memory backend]
//
// The fragment is deliberately small:
//   - Select(from, filter, bindings, order, limit)
//   - Join(left, right, on): inner joins of two selects
//   - Predicates: Equals (field = literal), FieldEquals (field = field), And
//   - Explicit field bindings (no SELECT *)
//
// Query and Predicate are sealed interfaces using the marker method
// pattern, so backends can switch over them exhaustively:
//
//	switch q := query.(type) {
//	case Select:
//	    // Handle select
//	case Join:
//	    // Handle join
//	}
//
// Every query has a deterministic order. A Select without OrderBy is
// ordered by its source's id column.
package queryir
