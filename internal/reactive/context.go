// Package reactive is the quoted proxy layer.
//
// Proxies stand in for remote observables, observers, streams and their
// factories. Composing an operator on a proxy executes nothing: it wraps
// the proxy's expression in a call to the operator's bound member and
// returns a new proxy. Only terminal actions (Subscribe, Create, Define*,
// Undefine*, OnNext/OnError/OnCompleted, Dispose) compile the expression
// and dispatch exactly one operation.
//
// Composition errors are sticky. The first error is kept on the resulting
// proxy, surfaced by Err, and returned by any terminal action before the
// expression is normalized.
package reactive

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/rxq/internal/compiler"
	"github.com/roach88/rxq/internal/engine"
	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/metadata"
	"github.com/roach88/rxq/internal/normalize"
	"github.com/roach88/rxq/internal/operation"
	"github.com/roach88/rxq/internal/registry"
)

// Context is the shared query-compilation context of a set of proxies: the
// resource registry and the compiler dispatching to the engine.
type Context struct {
	registry *registry.Registry
	compiler *compiler.Compiler
	metadata *metadata.Provider
	ids      engine.URIGenerator
	logger   *slog.Logger
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger used by the context and its compiler.
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithURIGenerator sets the generator used for anonymous subscriptions
// and streams.
func WithURIGenerator(g engine.URIGenerator) Option {
	return func(c *Context) {
		if g != nil {
			c.ids = g
		}
	}
}

// NewContext returns a context composing against reg and dispatching to e.
// e is usually an *engine.Dispatcher. A nil reg is an empty registry, so
// every operator fails to compose.
func NewContext(e engine.Engine, reg *registry.Registry, opts ...Option) *Context {
	if reg == nil {
		reg = registry.New()
	}
	c := &Context{
		registry: reg,
		ids:      engine.UUIDGenerator{Prefix: "rx://subscriptions/"},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.compiler = compiler.New(normalize.New(reg), e, c.logger)
	c.metadata = metadata.NewProvider(c.compiler)
	return c
}

// Registry returns the resource registry.
func (c *Context) Registry() *registry.Registry { return c.registry }

// Compiler returns the operation compiler.
func (c *Context) Compiler() *compiler.Compiler { return c.compiler }

// Metadata returns the metadata query provider.
func (c *Context) Metadata() *metadata.Provider { return c.metadata }

// bind resolves m and builds a call to it. Unbound members and ill-typed
// arguments are composition errors.
func (c *Context) bind(op string, m ir.Member, args ...ir.Expr) (ir.Expr, error) {
	if _, err := c.registry.Lookup(m); err != nil {
		return nil, &CompositionError{Op: op, Err: err}
	}
	call, err := ir.CallOf(m, nil, args...)
	if err != nil {
		return nil, &CompositionError{Op: op, Err: err}
	}
	return call, nil
}

func (c *Context) observable(e ir.Expr, err error) Observable {
	return Observable{proxy{ctx: c, expr: e, err: err}}
}

// GetObservable returns a proxy for the observable named uri with
// element type elem.
func (c *Context) GetObservable(uri ir.URI, elem ir.Type) Observable {
	if uri == "" {
		return c.observable(nil, operation.Required("uri"))
	}
	if elem.IsZero() {
		return c.observable(nil, operation.Required("type"))
	}
	return c.observable(ir.Free(string(uri), ir.ObservableOf(elem)), nil)
}

// GetObservableFactory returns a proxy for a parameterized observable.
// t must be Func<params..., Observable<T>>.
func (c *Context) GetObservableFactory(uri ir.URI, t ir.Type) ObservableFactory {
	if err := checkResource(uri, t, ir.NameObservable); err != nil {
		return ObservableFactory{proxy{ctx: c, err: err}}
	}
	return ObservableFactory{proxy{ctx: c, expr: ir.Free(string(uri), t)}}
}

// GetObserver returns a proxy for the observer named uri.
func (c *Context) GetObserver(uri ir.URI, elem ir.Type) Observer {
	if uri == "" {
		return Observer{proxy: proxy{ctx: c, err: operation.Required("uri")}}
	}
	if elem.IsZero() {
		return Observer{proxy: proxy{ctx: c, err: operation.Required("type")}}
	}
	return Observer{proxy: proxy{ctx: c, expr: ir.Free(string(uri), ir.ObserverOf(elem))}, uri: uri}
}

// GetObserverFactory returns a proxy for a parameterized observer.
// t must be Func<params..., Observer<T>>.
func (c *Context) GetObserverFactory(uri ir.URI, t ir.Type) ObserverFactory {
	if err := checkResource(uri, t, ir.NameObserver); err != nil {
		return ObserverFactory{proxy{ctx: c, err: err}}
	}
	return ObserverFactory{proxy{ctx: c, expr: ir.Free(string(uri), t)}}
}

// GetStreamFactory returns a proxy for a stream factory of type
// StreamFactory<params..., T>.
func (c *Context) GetStreamFactory(uri ir.URI, t ir.Type) StreamFactory {
	if err := checkNamed(uri, t, ir.NameStreamFactory); err != nil {
		return StreamFactory{proxy{ctx: c, err: err}}
	}
	return StreamFactory{proxy{ctx: c, expr: ir.Free(string(uri), t)}}
}

// GetSubscriptionFactory returns a proxy for a subscription factory of
// type SubscriptionFactory<params...>.
func (c *Context) GetSubscriptionFactory(uri ir.URI, t ir.Type) SubscriptionFactory {
	if err := checkNamed(uri, t, ir.NameSubscriptionFactory); err != nil {
		return SubscriptionFactory{proxy{ctx: c, err: err}}
	}
	return SubscriptionFactory{proxy{ctx: c, expr: ir.Free(string(uri), t)}}
}

// GetStream returns a proxy for an existing stream.
func (c *Context) GetStream(uri ir.URI, elem ir.Type) Stream {
	if uri == "" {
		return Stream{ctx: c, err: operation.Required("uri")}
	}
	if elem.IsZero() {
		return Stream{ctx: c, err: operation.Required("type")}
	}
	return Stream{ctx: c, uri: uri, elem: elem}
}

// GetSubscription returns a handle for an existing subscription.
func (c *Context) GetSubscription(uri ir.URI) Subscription {
	return Subscription{ctx: c, uri: uri}
}

// Bound returns the observable a bound static property stands for. The
// property must be registered; after normalization the reference is the
// same free variable GetObservable would produce for the bound URI.
func (c *Context) Bound(m ir.Member) Observable {
	if m.Kind != ir.PropertyMember || !m.Result.Is(ir.NameObservable) {
		return c.observable(nil, &CompositionError{Op: m.Signature(), Err: errNotObservableProperty})
	}
	if _, err := c.registry.Lookup(m); err != nil {
		return c.observable(nil, &CompositionError{Op: m.Signature(), Err: err})
	}
	return c.observable(ir.Access(nil, m), nil)
}

// Timer returns an observable that fires once after d.
func (c *Context) Timer(d time.Duration) Observable {
	return c.observable(c.bind("Timer", MemberTimer, ir.DurationConst(d)))
}

// Return returns an observable producing v, typed t.
func (c *Context) Return(v ir.Value, t ir.Type) Observable {
	if t.IsZero() {
		return c.observable(nil, operation.Required("type"))
	}
	return c.observable(c.bind("Return", MemberReturn, ir.Const(v, t)))
}

// Empty returns an observable of elem that completes immediately.
func (c *Context) Empty(elem ir.Type) Observable {
	return c.nullary("Empty", MemberEmpty, elem)
}

// Never returns an observable of elem that never produces.
func (c *Context) Never(elem ir.Type) Observable {
	return c.nullary("Never", MemberNever, elem)
}

// nullary builds a call to an operator whose element type cannot be
// inferred from arguments.
func (c *Context) nullary(op string, m ir.Member, elem ir.Type) Observable {
	if elem.IsZero() {
		return c.observable(nil, operation.Required("type"))
	}
	if _, err := c.registry.Lookup(m); err != nil {
		return c.observable(nil, &CompositionError{Op: op, Err: err})
	}
	return c.observable(&ir.Call{Method: m, StaticType: ir.ObservableOf(elem)}, nil)
}

// ObservableFunc quotes a parameterized observable as a lambda. Applying
// it and normalizing inlines the body.
func (c *Context) ObservableFunc(name string, t ir.Type, body func(x ir.Expr) Observable) ObservableFactory {
	if body == nil {
		return ObservableFactory{proxy{ctx: c, err: operation.Required("body")}}
	}
	q := Func1(name, t, func(x ir.Expr) Quoted { return body(x) })
	return ObservableFactory{proxy{ctx: c, expr: q.Expr(), err: q.Err()}}
}

// DefineObservable defines the observable id as q, which must produce an
// Observable or a parameterized observable.
func (c *Context) DefineObservable(ctx context.Context, id ir.URI, q Quoted, state ir.Value) error {
	return c.define(ctx, operation.KindDefineObservable, id, q, state, ir.NameObservable, "observable")
}

// DefineObserver defines the observer id as q.
func (c *Context) DefineObserver(ctx context.Context, id ir.URI, q Quoted, state ir.Value) error {
	return c.define(ctx, operation.KindDefineObserver, id, q, state, ir.NameObserver, "observer")
}

// DefineStreamFactory defines the stream factory id as q, which must
// produce a StreamFactory or a function returning a Subject.
func (c *Context) DefineStreamFactory(ctx context.Context, id ir.URI, q Quoted, state ir.Value) error {
	return c.define(ctx, operation.KindDefineStreamFactory, id, q, state, ir.NameStreamFactory, "factory")
}

// DefineSubscriptionFactory defines the subscription factory id as q,
// which must produce a Subscription or a function returning one.
func (c *Context) DefineSubscriptionFactory(ctx context.Context, id ir.URI, q Quoted, state ir.Value) error {
	return c.define(ctx, operation.KindDefineSubscriptionFactory, id, q, state, ir.NameSubscriptionFactory, "factory")
}

func (c *Context) define(ctx context.Context, kind operation.Kind, id ir.URI, q Quoted, state ir.Value, want, param string) error {
	if id == "" {
		return operation.Required("id")
	}
	if q == nil {
		return operation.Required(param)
	}
	if err := q.Err(); err != nil {
		return err
	}
	e := q.Expr()
	if e == nil {
		return operation.Required(param)
	}
	if !definitionFits(e.Type(), want) {
		return &CompositionError{Op: string(kind), Err: &typeError{got: e.Type(), want: want}}
	}
	return c.compiler.Define(ctx, kind, id, e, state)
}

// UndefineObservable removes the observable definition id.
func (c *Context) UndefineObservable(ctx context.Context, id ir.URI) error {
	return c.compiler.Undefine(ctx, operation.KindUndefineObservable, id)
}

// UndefineObserver removes the observer definition id.
func (c *Context) UndefineObserver(ctx context.Context, id ir.URI) error {
	return c.compiler.Undefine(ctx, operation.KindUndefineObserver, id)
}

// UndefineStreamFactory removes the stream factory definition id.
func (c *Context) UndefineStreamFactory(ctx context.Context, id ir.URI) error {
	return c.compiler.Undefine(ctx, operation.KindUndefineStreamFactory, id)
}

// UndefineSubscriptionFactory removes the subscription factory definition id.
func (c *Context) UndefineSubscriptionFactory(ctx context.Context, id ir.URI) error {
	return c.compiler.Undefine(ctx, operation.KindUndefineSubscriptionFactory, id)
}
