package querysql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/opgraph/internal/ir"
	"github.com/roach88/opgraph/internal/queryir"
)

// SQLCompiler compiles QueryIR to parameterized SQL for SQLite.
//
// CRITICAL: ALL queries include ORDER BY with an id tiebreaker so results
// are deterministic.
// CRITICAL: All values are parameterized (never interpolated). Names are
// interpolated only after queryir.Validate accepted them.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Column is one selected column: the source field and its result key.
type Column struct {
	Field string
	Key   string
}

// Compile converts a QueryIR query to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}
	if err := queryir.Validate(q).Err(); err != nil {
		return "", nil, err
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case queryir.Join:
		return c.compileJoin(query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

// Columns returns the selected columns of q in SELECT clause order.
func Columns(q queryir.Query) []Column {
	switch query := q.(type) {
	case queryir.Select:
		return bindingColumns(query.Bindings)
	case queryir.Join:
		return append(bindingColumns(query.Left.Bindings), bindingColumns(query.Right.Bindings)...)
	}
	return nil
}

// bindingColumns sorts bindings by source field for deterministic output.
func bindingColumns(bindings map[string]string) []Column {
	fields := make([]string, 0, len(bindings))
	for f := range bindings {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	cols := make([]Column, len(fields))
	for i, f := range fields {
		cols[i] = Column{Field: f, Key: bindings[f]}
	}
	return cols
}

// compileSelect compiles a queryir.Select to SQL.
// MANDATORY: Includes ORDER BY.
func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	var b strings.Builder
	var params []any

	fmt.Fprintf(&b, "SELECT %s FROM %s", selectList(Columns(q)), q.From)

	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE " + filterSQL)
		params = append(params, filterParams...)
	}

	b.WriteString(" ORDER BY " + stableOrderKey(q.OrderBy, "id"))

	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, int64(q.Limit))
	}
	return b.String(), params, nil
}

// compileJoin compiles a queryir.Join to SQL INNER JOIN. Both sides'
// filters become one WHERE clause; the result follows the left order.
// MANDATORY: Includes ORDER BY.
func (c *SQLCompiler) compileJoin(j queryir.Join) (string, []any, error) {
	var b strings.Builder
	var params []any

	fmt.Fprintf(&b, "SELECT %s FROM %s INNER JOIN %s", selectList(Columns(j)), j.Left.From, j.Right.From)

	onSQL, onParams, err := c.compilePredicate(j.On)
	if err != nil {
		return "", nil, fmt.Errorf("compile join ON: %w", err)
	}
	b.WriteString(" ON " + onSQL)
	params = append(params, onParams...)

	var where []string
	for _, side := range []queryir.Select{j.Left, j.Right} {
		if side.Filter == nil {
			continue
		}
		sql, sideParams, err := c.compilePredicate(side.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile %s filter: %w", side.From, err)
		}
		where = append(where, sql)
		params = append(params, sideParams...)
	}
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	b.WriteString(" ORDER BY " + stableOrderKey(j.Left.OrderBy, j.Left.From+".id"))

	if j.Left.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, int64(j.Left.Limit))
	}
	return b.String(), params, nil
}

// selectList renders columns as "field AS "key"". Result keys are quoted
// because they are not restricted to identifiers.
func selectList(cols []Column) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = fmt.Sprintf("%s AS %s", col.Field, quoteIdent(col.Key))
	}
	return strings.Join(parts, ", ")
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// stableOrderKey returns the ORDER BY clause body. The id tiebreaker is
// always last. COLLATE BINARY keeps text ordering identical across SQLite
// versions.
func stableOrderKey(fields []string, id string) string {
	parts := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		parts = append(parts, f+" ASC")
	}
	parts = append(parts, id+" COLLATE BINARY ASC")
	return strings.Join(parts, ", ")
}

// compilePredicate compiles a queryir.Predicate to SQL WHERE clause fragment.
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case queryir.Equals:
		param, err := irValueToParam(pred.Value)
		if err != nil {
			return "", nil, fmt.Errorf("convert value: %w", err)
		}
		return pred.Field + " = ?", []any{param}, nil
	case queryir.FieldEquals:
		return pred.Left + " = " + pred.Right, nil, nil
	case queryir.And:
		return c.compileAnd(pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileAnd compiles an And predicate to conjunction with AND.
func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil // vacuous truth
	}

	var sqlParts []string
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		if _, nested := pred.(queryir.And); nested {
			sql = "(" + sql + ")"
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}
	return strings.Join(sqlParts, " AND "), allParams, nil
}

// irValueToParam converts a scalar ir.Value to a Go native SQL parameter.
// Integral numbers become int64 so they compare equal to INTEGER columns.
func irValueToParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.Str:
		return string(val), nil
	case ir.Num:
		if float64(val) == float64(int64(val)) {
			return int64(val), nil
		}
		return float64(val), nil
	case ir.Bool:
		return bool(val), nil
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
