package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/metadata"
	"github.com/roach88/rxq/internal/operation"
	"github.com/roach88/rxq/internal/queryir"
	"github.com/roach88/rxq/internal/querysql"
)

// Query answers a metadata query expression from the catalog.
//
// Results by shape:
//   - collections: an ir.Array of definition objects {Uri, Expression, State}
//     or of projected field values
//   - Count: ir.Int
//   - Any: ir.Bool
//   - First: the first element, or ir.Null{} when there is none
//
// Expressions outside the relational subset return an
// UnsupportedExpressionError.
func (s *Store) Query(ctx context.Context, expr ir.Expr) (ir.Value, error) {
	if expr == nil {
		return nil, operation.Required("expression")
	}
	plan, err := queryir.Plan(expr)
	if err != nil {
		return nil, err
	}
	st, err := querysql.NewSQLCompiler().Compile(plan)
	if err != nil {
		return nil, fmt.Errorf("metadata query: %w", err)
	}

	switch st.Result {
	case querysql.ResultCount:
		var n int64
		if err := s.db.QueryRowContext(ctx, st.SQL, st.Params...).Scan(&n); err != nil {
			return nil, fmt.Errorf("metadata count: %w", err)
		}
		return ir.Int(n), nil
	case querysql.ResultAny:
		var n int64
		if err := s.db.QueryRowContext(ctx, st.SQL, st.Params...).Scan(&n); err != nil {
			return nil, fmt.Errorf("metadata any: %w", err)
		}
		return ir.Bool(n != 0), nil
	}

	elems, err := s.queryRows(ctx, st)
	if err != nil {
		return nil, err
	}
	if st.Result == querysql.ResultFirst {
		if len(elems) == 0 {
			return ir.Null{}, nil
		}
		return elems[0], nil
	}
	return elems, nil
}

func (s *Store) queryRows(ctx context.Context, st querysql.Statement) (ir.Array, error) {
	rows, err := s.db.QueryContext(ctx, st.SQL, st.Params...)
	if err != nil {
		return nil, fmt.Errorf("metadata query: %w", err)
	}
	defer rows.Close()

	out := ir.Array{}
	for rows.Next() {
		cells := make([]sql.NullString, len(st.Fields))
		dest := make([]any, len(cells))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan metadata row: %w", err)
		}

		obj := make(ir.Object, len(st.Fields))
		for i, field := range st.Fields {
			v, err := fieldValue(field, cells[i])
			if err != nil {
				return nil, err
			}
			obj[field] = v
		}
		if st.Projected() {
			out = append(out, obj[st.Fields[0]])
		} else {
			out = append(out, obj)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metadata rows: %w", err)
	}
	return out, nil
}

// fieldValue converts a stored column back to its field value. Uri is
// plain text; Expression and State are canonical JSON.
func fieldValue(field string, cell sql.NullString) (ir.Value, error) {
	if field == metadata.FieldURI {
		return ir.String(cell.String), nil
	}
	v, err := unmarshalJSON(cell)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", field, err)
	}
	return v, nil
}
