// Package querysql compiles queryir plans to parameterized SQLite queries
// over the journal's resources table.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/metadata"
	"github.com/roach88/rxq/internal/queryir"
)

// ResultKind says how the rows of a Statement become one ir.Value.
type ResultKind int

const (
	// ResultRows: an array with one element per row.
	ResultRows ResultKind = iota
	// ResultCount: a single integer column.
	ResultCount
	// ResultAny: a single 0/1 column.
	ResultAny
	// ResultFirst: the first row's element, or null.
	ResultFirst
)

// Statement is a compiled query.
type Statement struct {
	SQL    string
	Params []any

	// Fields names the selected columns in order. A single field means
	// each element is that field's value; all three mean each element is
	// a definition object.
	Fields []string
	Result ResultKind
}

// Projected reports whether elements are single field values.
func (s Statement) Projected() bool {
	return len(s.Fields) == 1
}

// columns maps definition fields to resources columns.
var columns = map[string]string{
	metadata.FieldURI:        "uri",
	metadata.FieldExpression: "expr",
	metadata.FieldState:      "state",
}

var allFields = []string{metadata.FieldURI, metadata.FieldExpression, metadata.FieldState}

// SQLCompiler compiles plans against one resources table.
//
// CRITICAL: every row query ends in ORDER BY uri COLLATE BINARY so results
// are identical across replays.
// CRITICAL: literal values are always parameters, never interpolated.
type SQLCompiler struct {
	// Table is the resources table name.
	Table string
}

// NewSQLCompiler returns a compiler for the "resources" table.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{Table: "resources"}
}

// Compile converts a plan to SQL. The plan is validated first.
func (c *SQLCompiler) Compile(q queryir.Query) (Statement, error) {
	if q == nil {
		return Statement{}, fmt.Errorf("cannot compile nil query")
	}
	if err := queryir.Validate(q); err != nil {
		return Statement{}, fmt.Errorf("invalid plan: %w", err)
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case queryir.Join:
		return c.compileJoin(query)
	case queryir.Aggregate:
		return c.compileAggregate(query)
	default:
		return Statement{}, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileAggregate(a queryir.Aggregate) (Statement, error) {
	if a.Func == queryir.AggFirst {
		switch src := a.Source.(type) {
		case queryir.Select:
			src.Limit = firstLimit(src.Limit)
			st, err := c.compileSelect(src)
			st.Result = ResultFirst
			return st, err
		case queryir.Join:
			src.Limit = firstLimit(src.Limit)
			st, err := c.compileJoin(src)
			st.Result = ResultFirst
			return st, err
		}
		return Statement{}, fmt.Errorf("unsupported aggregate source: %T", a.Source)
	}

	var inner Statement
	var err error
	switch src := a.Source.(type) {
	case queryir.Select:
		inner, err = c.compileSelect(src)
	case queryir.Join:
		inner, err = c.compileJoin(src)
	default:
		return Statement{}, fmt.Errorf("unsupported aggregate source: %T", a.Source)
	}
	if err != nil {
		return Statement{}, err
	}

	switch a.Func {
	case queryir.AggCount:
		return Statement{SQL: "SELECT COUNT(*) FROM (" + inner.SQL + ")", Params: inner.Params, Result: ResultCount}, nil
	case queryir.AggAny:
		return Statement{SQL: "SELECT EXISTS (" + inner.SQL + ")", Params: inner.Params, Result: ResultAny}, nil
	}
	return Statement{}, fmt.Errorf("unsupported aggregate: %s", a.Func)
}

func firstLimit(limit int64) int64 {
	if limit == queryir.NoLimit || limit > 1 {
		return 1
	}
	return limit
}

// compileSelect compiles
//
//	SELECT <cols> FROM resources WHERE collection = ? [AND <filter>] ORDER BY uri [LIMIT ?]
func (c *SQLCompiler) compileSelect(q queryir.Select) (Statement, error) {
	fields := projection(q.Project)
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(selectList("", fields))
	fmt.Fprintf(&sb, " FROM %s WHERE collection = ?", c.Table)
	params := []any{q.From}

	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter, "")
		if err != nil {
			return Statement{}, fmt.Errorf("compile filter: %w", err)
		}
		sb.WriteString(" AND ")
		sb.WriteString(filterSQL)
		params = append(params, filterParams...)
	}

	// MANDATORY: deterministic order
	sb.WriteString(" ORDER BY uri ASC COLLATE BINARY")
	if q.Limit != queryir.NoLimit {
		sb.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}
	return Statement{SQL: sb.String(), Params: params, Fields: fields}, nil
}

// compileJoin compiles an inner self-join of the resources table.
func (c *SQLCompiler) compileJoin(j queryir.Join) (Statement, error) {
	fields := projection(j.Project)
	alias := "l"
	if j.ProjectSide == queryir.Right {
		alias = "r"
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(selectList(alias, fields))
	fmt.Fprintf(&sb, " FROM %s l INNER JOIN %s r ON l.%s = r.%s", c.Table, c.Table, columns[j.LeftKey], columns[j.RightKey])
	sb.WriteString(" WHERE l.collection = ? AND r.collection = ?")
	params := []any{j.Left.From, j.Right.From}

	for _, side := range []struct {
		alias  string
		filter queryir.Predicate
	}{{"l", j.Left.Filter}, {"r", j.Right.Filter}} {
		if side.filter == nil {
			continue
		}
		filterSQL, filterParams, err := c.compilePredicate(side.filter, side.alias)
		if err != nil {
			return Statement{}, fmt.Errorf("compile %s filter: %w", side.alias, err)
		}
		sb.WriteString(" AND ")
		sb.WriteString(filterSQL)
		params = append(params, filterParams...)
	}

	sb.WriteString(" ORDER BY l.uri ASC COLLATE BINARY, r.uri ASC COLLATE BINARY")
	if j.Limit != queryir.NoLimit {
		sb.WriteString(" LIMIT ?")
		params = append(params, j.Limit)
	}
	return Statement{SQL: sb.String(), Params: params, Fields: fields}, nil
}

func projection(field string) []string {
	if field == "" {
		return allFields
	}
	return []string{field}
}

func selectList(alias string, fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = qualify(alias, columns[f])
	}
	return strings.Join(parts, ", ")
}

func qualify(alias, column string) string {
	if alias == "" {
		return column
	}
	return alias + "." + column
}

// compilePredicate compiles a predicate to a WHERE fragment.
// CRITICAL: values are never interpolated.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate, alias string) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Compare:
		param, err := irValueToParam(pred.Value)
		if err != nil {
			return "", nil, fmt.Errorf("convert value: %w", err)
		}
		return fmt.Sprintf("%s %s ?", qualify(alias, columns[pred.Field]), pred.Op), []any{param}, nil
	case queryir.And:
		return c.compileJunction(pred.Predicates, " AND ", "1 = 1", alias)
	case queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ", "1 = 0", alias)
	case queryir.Not:
		sql, params, err := c.compilePredicate(pred.Predicate, alias)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", params, nil
	case queryir.Literal:
		if pred.Value {
			return "1 = 1", nil, nil
		}
		return "1 = 0", nil, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileJunction(preds []queryir.Predicate, sep, empty, alias string) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}
	var sqlParts []string
	var allParams []any
	for _, pred := range preds {
		sql, params, err := c.compilePredicate(pred, alias)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}
	return "(" + strings.Join(sqlParts, sep) + ")", allParams, nil
}

// irValueToParam converts a literal to a SQL parameter. Only scalars can
// be parameters.
func irValueToParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Bool:
		return bool(val), nil
	case ir.Null:
		return nil, nil
	case ir.Array:
		return nil, fmt.Errorf("array cannot be used as SQL parameter directly")
	case ir.Object:
		return nil, fmt.Errorf("object cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
