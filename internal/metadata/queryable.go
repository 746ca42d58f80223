package metadata

import (
	"context"
	"fmt"

	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/operation"
)

// Standard query operators. They are never bound in the registry, so
// queries built from them reach the engine as written.
var (
	typeT = ir.TypeParam("T")
	typeU = ir.TypeParam("U")
	typeK = ir.TypeParam("K")
	typeR = ir.TypeParam("R")

	queryOfT = ir.QueryableOf(typeT)

	MemberWhere  = ir.Method(ir.NameQueryable, "Where", queryOfT, queryOfT, ir.FuncOf(ir.TypeBool, typeT))
	MemberSelect = ir.Method(ir.NameQueryable, "Select", ir.QueryableOf(typeR), queryOfT, ir.FuncOf(typeR, typeT))
	MemberJoin   = ir.Method(ir.NameQueryable, "Join", ir.QueryableOf(typeR),
		queryOfT, ir.QueryableOf(typeU), ir.FuncOf(typeK, typeT), ir.FuncOf(typeK, typeU), ir.FuncOf(typeR, typeT, typeU))
	MemberTake  = ir.Method(ir.NameQueryable, "Take", queryOfT, queryOfT, ir.TypeInt)
	MemberCount = ir.Method(ir.NameQueryable, "Count", ir.TypeInt, queryOfT)
	MemberAny   = ir.Method(ir.NameQueryable, "Any", ir.TypeBool, queryOfT)
	MemberFirst = ir.Method(ir.NameQueryable, "First", typeT, queryOfT)
)

// Queryable is a deferred query over metadata collections. Composition
// errors are sticky: the first one is kept and returned by Err and by every
// execution.
type Queryable struct {
	provider *Provider
	expr     ir.Expr
	err      error
}

// Expr returns the query expression.
func (q Queryable) Expr() ir.Expr { return q.expr }

// Err returns the first composition error.
func (q Queryable) Err() error { return q.err }

// Elem returns the element type of the query.
func (q Queryable) Elem() ir.Type {
	if q.expr == nil {
		return ir.Type{}
	}
	return q.expr.Type().Elem()
}

func (q Queryable) fail(err error) Queryable {
	return Queryable{provider: q.provider, err: err}
}

func (q Queryable) call(m ir.Member, args ...ir.Expr) (ir.Expr, error) {
	if q.err != nil {
		return nil, q.err
	}
	if q.expr == nil || q.provider == nil {
		return nil, operation.Required("query")
	}
	call, err := ir.CallOf(m, nil, append([]ir.Expr{q.expr}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", m.Name, err)
	}
	return call, nil
}

func (q Queryable) then(m ir.Member, args ...ir.Expr) Queryable {
	e, err := q.call(m, args...)
	if err != nil {
		return q.fail(err)
	}
	return Queryable{provider: q.provider, expr: e}
}

func lambda1(param string, t ir.Type, f func(x ir.Expr) ir.Expr) (*ir.Lambda, error) {
	if f == nil {
		return nil, operation.Required(param)
	}
	p := ir.Param("x", t)
	body := f(p)
	if body == nil {
		return nil, &operation.ArgumentError{Param: param, Message: "returned no expression"}
	}
	return ir.LambdaOf(body, p), nil
}

// Where filters the collection.
func (q Queryable) Where(pred func(x ir.Expr) ir.Expr) Queryable {
	if q.err != nil {
		return q
	}
	lam, err := lambda1("predicate", q.Elem(), pred)
	if err != nil {
		return q.fail(err)
	}
	return q.then(MemberWhere, lam)
}

// Select projects each element.
func (q Queryable) Select(selector func(x ir.Expr) ir.Expr) Queryable {
	if q.err != nil {
		return q
	}
	lam, err := lambda1("selector", q.Elem(), selector)
	if err != nil {
		return q.fail(err)
	}
	return q.then(MemberSelect, lam)
}

// Join correlates q with inner on equal keys.
func (q Queryable) Join(inner Queryable, outerKey, innerKey func(x ir.Expr) ir.Expr, result func(outer, inner ir.Expr) ir.Expr) Queryable {
	if q.err != nil {
		return q
	}
	if inner.err != nil {
		return q.fail(inner.err)
	}
	if inner.expr == nil {
		return q.fail(operation.Required("inner"))
	}
	ok, err := lambda1("outerKey", q.Elem(), outerKey)
	if err != nil {
		return q.fail(err)
	}
	ik, err := lambda1("innerKey", inner.Elem(), innerKey)
	if err != nil {
		return q.fail(err)
	}
	if result == nil {
		return q.fail(operation.Required("result"))
	}
	o, i := ir.Param("o", q.Elem()), ir.Param("i", inner.Elem())
	body := result(o, i)
	if body == nil {
		return q.fail(&operation.ArgumentError{Param: "result", Message: "returned no expression"})
	}
	return q.then(MemberJoin, inner.expr, ok, ik, ir.LambdaOf(body, o, i))
}

// Take limits the query to n elements.
func (q Queryable) Take(n int64) Queryable {
	return q.then(MemberTake, ir.IntConst(n))
}

// Execute dispatches the query and returns the engine's answer.
func (q Queryable) Execute(ctx context.Context) (ir.Value, error) {
	if q.err != nil {
		return nil, q.err
	}
	if q.provider == nil {
		return nil, operation.Required("query")
	}
	return q.provider.Execute(ctx, q.expr)
}

func (q Queryable) aggregate(ctx context.Context, m ir.Member) (ir.Value, error) {
	e, err := q.call(m)
	if err != nil {
		return nil, err
	}
	return q.provider.Execute(ctx, e)
}

// Count returns the number of elements, computed by the engine.
func (q Queryable) Count(ctx context.Context) (int64, error) {
	v, err := q.aggregate(ctx, MemberCount)
	if err != nil {
		return 0, err
	}
	n, ok := v.(ir.Int)
	if !ok {
		return 0, fmt.Errorf("metadata Count: engine returned %T, want int", v)
	}
	return int64(n), nil
}

// Any reports whether the query has an element, computed by the engine.
func (q Queryable) Any(ctx context.Context) (bool, error) {
	v, err := q.aggregate(ctx, MemberAny)
	if err != nil {
		return false, err
	}
	b, ok := v.(ir.Bool)
	if !ok {
		return false, fmt.Errorf("metadata Any: engine returned %T, want bool", v)
	}
	return bool(b), nil
}

// First returns the first element, or ir.Null{} for an empty result.
func (q Queryable) First(ctx context.Context) (ir.Value, error) {
	return q.aggregate(ctx, MemberFirst)
}
