package reactive

import (
	"context"

	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/operation"
)

// Observable is a proxy for a remote observable sequence.
type Observable struct {
	proxy
}

// Elem returns the element type.
func (o Observable) Elem() ir.Type {
	return o.Type().Elem()
}

func (o Observable) then(e ir.Expr, err error) Observable {
	if err != nil {
		return Observable{proxy{ctx: o.ctx, err: err}}
	}
	return Observable{proxy{ctx: o.ctx, expr: e}}
}

// call applies the operator m with o as its first argument.
func (o Observable) call(op string, m ir.Member, args ...ir.Expr) Observable {
	if err := o.check("source"); err != nil {
		return o.then(nil, err)
	}
	return o.then(o.ctx.bind(op, m, append([]ir.Expr{o.expr}, args...)...))
}

// lambda quotes f over the element type.
func (o Observable) lambda(param string, f func(x ir.Expr) ir.Expr) (*ir.Lambda, error) {
	if f == nil {
		return nil, operation.Required(param)
	}
	p := ir.Param("x", o.Elem())
	body := f(p)
	if body == nil {
		return nil, &operation.ArgumentError{Param: param, Message: "returned no expression"}
	}
	return ir.LambdaOf(body, p), nil
}

// Where keeps the elements for which pred holds.
func (o Observable) Where(pred func(x ir.Expr) ir.Expr) Observable {
	if err := o.check("source"); err != nil {
		return o.then(nil, err)
	}
	lam, err := o.lambda("predicate", pred)
	if err != nil {
		return o.then(nil, err)
	}
	return o.call("Where", MemberWhere, lam)
}

// Select projects each element.
func (o Observable) Select(selector func(x ir.Expr) ir.Expr) Observable {
	if err := o.check("source"); err != nil {
		return o.then(nil, err)
	}
	lam, err := o.lambda("selector", selector)
	if err != nil {
		return o.then(nil, err)
	}
	return o.call("Select", MemberSelect, lam)
}

// SelectMany projects each element to an inner observable and merges the
// results.
func (o Observable) SelectMany(selector func(x ir.Expr) Observable) Observable {
	if err := o.check("source"); err != nil {
		return o.then(nil, err)
	}
	if selector == nil {
		return o.then(nil, operation.Required("selector"))
	}
	p := ir.Param("x", o.Elem())
	inner := selector(p)
	if err := inner.check("selector"); err != nil {
		return o.then(nil, err)
	}
	return o.call("SelectMany", MemberSelectMany, ir.LambdaOf(inner.expr, p))
}

// Take keeps the first count elements. count is an int expression, a
// constant or a lambda parameter.
func (o Observable) Take(count ir.Expr) Observable {
	if count == nil {
		return o.then(nil, operation.Required("count"))
	}
	return o.call("Take", MemberTake, count)
}

// Skip drops the first count elements.
func (o Observable) Skip(count ir.Expr) Observable {
	if count == nil {
		return o.then(nil, operation.Required("count"))
	}
	return o.call("Skip", MemberSkip, count)
}

// DistinctUntilChanged drops consecutive duplicates.
func (o Observable) DistinctUntilChanged() Observable {
	return o.call("DistinctUntilChanged", MemberDistinctUntilChanged)
}

// Merge interleaves o and other.
func (o Observable) Merge(other Observable) Observable {
	if err := other.check("other"); err != nil {
		return o.then(nil, err)
	}
	return o.call("Merge", MemberMerge, other.expr)
}

// StartWith prepends v.
func (o Observable) StartWith(v ir.Value) Observable {
	if err := o.check("source"); err != nil {
		return o.then(nil, err)
	}
	return o.call("StartWith", MemberStartWith, ir.Const(v, o.Elem()))
}

// Apply calls a custom bound operator m whose first parameter is the
// source observable, e.g. one declared in a CUE catalog.
func (o Observable) Apply(m ir.Member, args ...ir.Expr) Observable {
	if !m.Result.Is(ir.NameObservable) {
		return o.then(nil, &CompositionError{Op: m.Name, Err: &typeError{got: m.Result, want: ir.NameObservable}})
	}
	return o.call(m.Name, m, args...)
}

// SubscribeExpr quotes the subscription of observer to o without
// creating it, e.g. as the body of a subscription factory.
func (o Observable) SubscribeExpr(observer Observer) Quoted {
	if err := o.check("source"); err != nil {
		return quote{err: err}
	}
	if err := observer.check("observer"); err != nil {
		return quote{err: err}
	}
	e, err := o.ctx.bind("Subscribe", MemberSubscribe, o.expr, observer.expr)
	return quote{expr: e, err: err}
}

// Subscribe creates the subscription id of observer to o, carrying state.
func (o Observable) Subscribe(ctx context.Context, observer Observer, id ir.URI, state ir.Value) (Subscription, error) {
	if id == "" {
		return Subscription{}, operation.Required("id")
	}
	if err := o.check("observable"); err != nil {
		return Subscription{}, err
	}
	q := o.SubscribeExpr(observer)
	if err := q.Err(); err != nil {
		return Subscription{}, err
	}
	if err := o.ctx.compiler.CreateSubscription(ctx, id, q.Expr(), state); err != nil {
		return Subscription{}, err
	}
	return Subscription{ctx: o.ctx, uri: id}, nil
}

// SubscribeNew is like Subscribe with an id minted by the context's URI
// generator.
func (o Observable) SubscribeNew(ctx context.Context, observer Observer, state ir.Value) (Subscription, error) {
	if err := o.check("observable"); err != nil {
		return Subscription{}, err
	}
	return o.Subscribe(ctx, observer, o.ctx.ids.Generate(), state)
}

// ObservableFactory is a proxy for a parameterized observable.
type ObservableFactory struct {
	proxy
}

// Apply invokes the factory with args. The arity and argument types must
// match the factory's parameters.
func (f ObservableFactory) Apply(args ...ir.Expr) Observable {
	if err := f.check("factory"); err != nil {
		return Observable{proxy{ctx: f.ctx, err: err}}
	}
	e, err := apply(ir.Format(f.expr), f.expr, args)
	return Observable{proxy{ctx: f.ctx, expr: e, err: err}}
}
