package reactive

import (
	"fmt"
	"time"

	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/operation"
)

// Scalar is the set of client variable types Var can quote.
type Scalar interface {
	int64 | string | bool | time.Duration
}

// Var quotes the client variable *p. The value is read when a terminal
// action normalizes the query, not when the query is composed: a query
// reused in a loop captures the value current at each call.
//
// Values are captured by copy at that moment; later changes to the
// variable do not affect operations already dispatched. A nil p makes the
// terminal action fail with an argument error.
func Var[T Scalar](name string, p *T) ir.Expr {
	var c *ir.Capture
	switch v := any(p).(type) {
	case *int64:
		c = ir.CaptureValue(name, ir.TypeInt, func() ir.Value { return ir.Int(*v) })
	case *string:
		c = ir.CaptureValue(name, ir.TypeString, func() ir.Value { return ir.String(*v) })
	case *bool:
		c = ir.CaptureValue(name, ir.TypeBool, func() ir.Value { return ir.Bool(*v) })
	case *time.Duration:
		c = ir.CaptureValue(name, ir.TypeDuration, func() ir.Value { return ir.Int(v.Nanoseconds()) })
	default:
		panic("unreachable")
	}
	c.Check = func() error {
		if p == nil {
			return operation.Required(name)
		}
		return nil
	}
	return c
}

// VarObservable quotes a client variable holding an observable proxy. The
// proxy's expression is read at normalization time and inlined. The static
// type is fixed by the value held when VarObservable is called; each
// terminal action rejects a held proxy that has failed, is empty or has
// since changed type.
func VarObservable(name string, p *Observable) Observable {
	if p == nil {
		return Observable{proxy{err: operation.Required(name)}}
	}
	t := p.Type()
	e := ir.CaptureExpr(name, t, func() ir.Expr { return p.Expr() })
	e.Check = func() error { return checkHeld(name, t, *p) }
	return Observable{proxy{ctx: p.ctx, expr: e, err: p.err}}
}

func checkHeld(name string, t ir.Type, o Observable) error {
	if err := o.Err(); err != nil {
		return err
	}
	if o.Expr() == nil {
		return operation.Required(name)
	}
	if got := o.Type(); !got.Equal(t) {
		return &CompositionError{Op: name, Err: fmt.Errorf("captured variable changed type from %s to %s", t, got)}
	}
	return nil
}
