package store

import (
	"database/sql"
	"fmt"

	"github.com/roach88/rxq/internal/ir"
)

// marshalExpr converts an expression to canonical JSON TEXT. The encoding
// is alpha-invariant, so equal TEXT means structurally equal expressions.
func marshalExpr(e ir.Expr) (string, error) {
	data, err := ir.MarshalExpr(e)
	if err != nil {
		return "", fmt.Errorf("marshal expression: %w", err)
	}
	return string(data), nil
}

// marshalState converts a state value to canonical JSON TEXT. Absent or
// null state is stored as SQL NULL.
func marshalState(v ir.Value) (sql.NullString, error) {
	if ir.IsNull(v) {
		return sql.NullString{}, nil
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal state: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalJSON parses canonical JSON TEXT. NULL decodes to ir.Null{}.
// Integers stay exact; floats are rejected.
func unmarshalJSON(data sql.NullString) (ir.Value, error) {
	if !data.Valid {
		return ir.Null{}, nil
	}
	v, err := ir.UnmarshalValue([]byte(data.String))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}
