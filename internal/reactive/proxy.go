package reactive

import (
	"errors"
	"fmt"

	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/operation"
)

// Quoted is anything that carries a deferred expression: every proxy type,
// and values built with Quote and Func1.
type Quoted interface {
	Expr() ir.Expr
	Err() error
}

// CompositionError reports a malformed composition: an unbound operator,
// a wrong arity or a type mismatch. It is sticky on the proxy that produced
// it and returned by every terminal action on that proxy.
type CompositionError struct {
	// Op is the operator or factory being applied.
	Op  string
	Err error
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("compose %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *CompositionError) Unwrap() error { return e.Err }

// IsCompositionError reports whether err is or wraps a CompositionError.
func IsCompositionError(err error) bool {
	var ce *CompositionError
	return errors.As(err, &ce)
}

// proxy is the state shared by every proxy type.
type proxy struct {
	ctx  *Context
	expr ir.Expr
	err  error
}

// Expr returns the expression that produces the proxied resource.
func (p proxy) Expr() ir.Expr { return p.expr }

// Err returns the first composition error, if any.
func (p proxy) Err() error { return p.err }

// Type returns the static type of the proxied resource.
func (p proxy) Type() ir.Type {
	if p.expr == nil {
		return ir.Type{}
	}
	return p.expr.Type()
}

// check returns the sticky error, or an argument error naming param when
// the proxy is the zero value.
func (p proxy) check(param string) error {
	if p.err != nil {
		return p.err
	}
	if p.expr == nil || p.ctx == nil {
		return operation.Required(param)
	}
	return nil
}

// quote is a Quoted expression with no proxy behavior.
type quote struct {
	expr ir.Expr
	err  error
}

func (q quote) Expr() ir.Expr { return q.expr }
func (q quote) Err() error    { return q.err }

// Quote wraps a raw expression, e.g. to define a resource from a
// hand-built tree.
func Quote(e ir.Expr) Quoted {
	return quote{expr: e}
}

// Func1 quotes a one-parameter function whose body is another quoted
// value. It is how parameterized resources are defined:
//
//	reactive.Func1("n", ir.TypeInt, func(n ir.Expr) reactive.Quoted {
//		return ticker.Take(n)
//	})
func Func1(name string, t ir.Type, body func(x ir.Expr) Quoted) Quoted {
	if body == nil {
		return quote{err: operation.Required("body")}
	}
	p := ir.Param(name, t)
	q := body(p)
	if q == nil || q.Expr() == nil {
		if q != nil && q.Err() != nil {
			return quote{err: q.Err()}
		}
		return quote{err: &operation.ArgumentError{Param: "body", Message: "returned no expression"}}
	}
	if err := q.Err(); err != nil {
		return quote{err: err}
	}
	return quote{expr: ir.LambdaOf(q.Expr(), p)}
}
