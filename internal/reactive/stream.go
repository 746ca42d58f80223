package reactive

import (
	"context"

	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/operation"
)

// Stream is a handle for a created stream: a remote subject that is both
// an observable and an observer under one URI.
type Stream struct {
	ctx  *Context
	uri  ir.URI
	elem ir.Type
	err  error
}

// URI returns the stream identifier.
func (s Stream) URI() ir.URI { return s.uri }

// Err returns the error that prevented the handle from being built.
func (s Stream) Err() error { return s.err }

// Observable returns the stream's observable side.
func (s Stream) Observable() Observable {
	if s.err != nil || s.ctx == nil {
		return Observable{proxy{ctx: s.ctx, err: s.check()}}
	}
	return s.ctx.observable(ir.Free(string(s.uri), ir.ObservableOf(s.elem)), nil)
}

// Observer returns the stream's observer side.
func (s Stream) Observer() Observer {
	if s.err != nil || s.ctx == nil {
		return Observer{proxy: proxy{ctx: s.ctx, err: s.check()}}
	}
	return Observer{proxy: proxy{ctx: s.ctx, expr: ir.Free(string(s.uri), ir.ObserverOf(s.elem))}, uri: s.uri}
}

func (s Stream) check() error {
	if s.err != nil {
		return s.err
	}
	if s.ctx == nil || s.uri == "" {
		return operation.Required("stream")
	}
	return nil
}

// OnNext sends v into the stream.
func (s Stream) OnNext(ctx context.Context, v ir.Value) error {
	return s.Observer().OnNext(ctx, v)
}

// OnError fails the stream.
func (s Stream) OnError(ctx context.Context, err error) error {
	return s.Observer().OnError(ctx, err)
}

// OnCompleted completes the stream.
func (s Stream) OnCompleted(ctx context.Context) error {
	return s.Observer().OnCompleted(ctx)
}

// Dispose deletes the stream.
func (s Stream) Dispose(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.ctx.compiler.DeleteStream(ctx, s.uri)
}

// Subscription is a handle for a created subscription.
type Subscription struct {
	ctx *Context
	uri ir.URI
}

// URI returns the subscription identifier.
func (s Subscription) URI() ir.URI { return s.uri }

// Dispose deletes the subscription.
func (s Subscription) Dispose(ctx context.Context) error {
	if s.ctx == nil || s.uri == "" {
		return operation.Required("subscription")
	}
	return s.ctx.compiler.DeleteSubscription(ctx, s.uri)
}

// StreamFactory is a proxy for a stream factory.
type StreamFactory struct {
	proxy
}

// Create creates the stream id from the factory applied to args.
func (f StreamFactory) Create(ctx context.Context, id ir.URI, state ir.Value, args ...ir.Expr) (Stream, error) {
	if id == "" {
		return Stream{}, operation.Required("id")
	}
	if err := f.check("factory"); err != nil {
		return Stream{}, err
	}
	e, err := apply("Create", f.expr, args)
	if err != nil {
		return Stream{}, err
	}
	if err := f.ctx.compiler.CreateStream(ctx, id, e, state); err != nil {
		return Stream{}, err
	}
	return Stream{ctx: f.ctx, uri: id, elem: e.Type().Elem()}, nil
}

// CreateNew is like Create with an id minted by the context's URI
// generator.
func (f StreamFactory) CreateNew(ctx context.Context, state ir.Value, args ...ir.Expr) (Stream, error) {
	if err := f.check("factory"); err != nil {
		return Stream{}, err
	}
	return f.Create(ctx, f.ctx.ids.Generate(), state, args...)
}

// SubscriptionFactory is a proxy for a subscription factory.
type SubscriptionFactory struct {
	proxy
}

// Create creates the subscription id from the factory applied to args.
func (f SubscriptionFactory) Create(ctx context.Context, id ir.URI, state ir.Value, args ...ir.Expr) (Subscription, error) {
	if id == "" {
		return Subscription{}, operation.Required("id")
	}
	if err := f.check("factory"); err != nil {
		return Subscription{}, err
	}
	e, err := apply("Create", f.expr, args)
	if err != nil {
		return Subscription{}, err
	}
	if err := f.ctx.compiler.CreateSubscription(ctx, id, e, state); err != nil {
		return Subscription{}, err
	}
	return Subscription{ctx: f.ctx, uri: id}, nil
}
