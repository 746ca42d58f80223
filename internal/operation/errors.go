package operation

import (
	"errors"
	"fmt"

	"github.com/roach88/rxq/internal/ir"
)

// Sentinel errors for errors.Is matching.
var (
	ErrArgument              = errors.New("argument error")
	ErrUnsupportedExpression = errors.New("unsupported expression")
)

// ArgumentError reports a missing or invalid required argument. It is
// raised before any normalization or dispatch.
type ArgumentError struct {
	// Param names the offending argument.
	Param string
	// Message describes the problem, e.g. "is required".
	Message string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %s: %s", e.Param, e.Message)
}

// Is matches ErrArgument.
func (e *ArgumentError) Is(target error) bool { return target == ErrArgument }

// Required returns an ArgumentError for an absent required argument.
func Required(param string) *ArgumentError {
	return &ArgumentError{Param: param, Message: "is required"}
}

// UnsupportedExpressionError reports an expression whose shape the query
// provider cannot execute or wrap.
type UnsupportedExpressionError struct {
	Expr   ir.Expr
	Reason string
}

func (e *UnsupportedExpressionError) Error() string {
	if e.Expr == nil {
		return "unsupported expression: " + e.Reason
	}
	return fmt.Sprintf("unsupported expression %s: %s", ir.Format(e.Expr), e.Reason)
}

// Is matches ErrUnsupportedExpression.
func (e *UnsupportedExpressionError) Is(target error) bool { return target == ErrUnsupportedExpression }

// IsArgumentError reports whether err is or wraps an ArgumentError.
func IsArgumentError(err error) bool {
	return errors.Is(err, ErrArgument)
}

// IsUnsupportedExpression reports whether err is or wraps an
// UnsupportedExpressionError.
func IsUnsupportedExpression(err error) bool {
	return errors.Is(err, ErrUnsupportedExpression)
}
