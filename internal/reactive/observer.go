package reactive

import (
	"context"

	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/operation"
)

// Observer is a proxy for a remote observer. Observers obtained by URI can
// be notified directly; observers produced by a factory can only be
// subscribed.
type Observer struct {
	proxy
	uri ir.URI
}

// URI returns the observer's identifier, empty for a factory-produced
// observer.
func (o Observer) URI() ir.URI { return o.uri }

func (o Observer) named() error {
	if err := o.check("observer"); err != nil {
		return err
	}
	if o.uri == "" {
		return &operation.ArgumentError{Param: "observer", Message: "is not a named resource"}
	}
	return nil
}

// OnNext sends v to the observer.
func (o Observer) OnNext(ctx context.Context, v ir.Value) error {
	if err := o.named(); err != nil {
		return err
	}
	return o.ctx.compiler.OnNext(ctx, o.uri, v)
}

// OnError sends err to the observer.
func (o Observer) OnError(ctx context.Context, err error) error {
	if nerr := o.named(); nerr != nil {
		return nerr
	}
	return o.ctx.compiler.OnError(ctx, o.uri, err)
}

// OnCompleted completes the observer.
func (o Observer) OnCompleted(ctx context.Context) error {
	if err := o.named(); err != nil {
		return err
	}
	return o.ctx.compiler.OnCompleted(ctx, o.uri)
}

// ObserverFactory is a proxy for a parameterized observer.
type ObserverFactory struct {
	proxy
}

// Apply invokes the factory with args.
func (f ObserverFactory) Apply(args ...ir.Expr) Observer {
	if err := f.check("factory"); err != nil {
		return Observer{proxy: proxy{ctx: f.ctx, err: err}}
	}
	e, err := apply(ir.Format(f.expr), f.expr, args)
	return Observer{proxy: proxy{ctx: f.ctx, expr: e, err: err}}
}
