// Package compiler turns terminal client actions into operations, and
// loads the declarative binding catalog that feeds the resource registry.
package compiler

import (
	"context"
	"io"
	"log/slog"

	"github.com/roach88/rxq/internal/engine"
	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/normalize"
	"github.com/roach88/rxq/internal/operation"
)

// Action is a terminal client action before normalization.
//
// Fields a kind does not use are ignored: Expr for undefine, delete and
// observer notifications; State for undefine and delete. For ObserverOnNext
// State is the value, for ObserverOnError it is the message.
type Action struct {
	Kind  operation.Kind
	ID    ir.URI
	Expr  ir.Expr
	State ir.Value
}

// Compiler normalizes terminal actions into operations and dispatches them.
//
// Each call produces exactly one operation. Required arguments are checked
// before normalization, so a rejected call dispatches nothing.
type Compiler struct {
	normalizer *normalize.Normalizer
	engine     engine.Engine
	logger     *slog.Logger
}

// New creates a Compiler dispatching to e. e is usually an
// *engine.Dispatcher. A nil logger discards.
func New(n *normalize.Normalizer, e engine.Engine, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if n == nil {
		n = normalize.New(nil)
	}
	return &Compiler{normalizer: n, engine: e, logger: logger}
}

// Normalizer returns the compiler's normalizer.
func (c *Compiler) Normalizer() *normalize.Normalizer {
	return c.normalizer
}

// Compile validates and normalizes a into an operation without
// dispatching it.
func (c *Compiler) Compile(a Action) (operation.Operation, error) {
	if a.Kind != operation.KindMetadataQuery && a.ID == "" {
		return nil, operation.Required("id")
	}
	var expr ir.Expr
	if carriesExpr(a.Kind) {
		if a.Expr == nil {
			return nil, operation.Required("expression")
		}
		if err := ir.CheckCaptures(a.Expr); err != nil {
			return nil, err
		}
		normalized, stats := c.normalizer.NormalizeStats(a.Expr)
		c.logger.Debug("normalized expression",
			"kind", string(a.Kind),
			"captures", stats.Captures,
			"substitutions", stats.Substitutions,
			"reductions", stats.Reductions,
			"guarded", stats.Guarded)
		expr = normalized
	}
	return operation.New(a.Kind, a.ID, expr, a.State)
}

// Execute compiles a and dispatches the result. The returned value is the
// engine's answer (ir.Null{} except for metadata queries).
func (c *Compiler) Execute(ctx context.Context, a Action) (ir.Value, error) {
	op, err := c.Compile(a)
	if err != nil {
		return nil, err
	}
	if c.engine == nil {
		return nil, &engine.DispatchError{Code: engine.ErrCodeNoEngine, Kind: op.Kind(), Message: "compiler has no engine"}
	}
	return c.engine.Dispatch(ctx, op)
}

func (c *Compiler) run(ctx context.Context, a Action) error {
	_, err := c.Execute(ctx, a)
	return err
}

func carriesExpr(kind operation.Kind) bool {
	return operation.HasDefinition(kind) || kind == operation.KindMetadataQuery
}

// CreateSubscription compiles and dispatches a CreateSubscription.
func (c *Compiler) CreateSubscription(ctx context.Context, id ir.URI, expr ir.Expr, state ir.Value) error {
	return c.run(ctx, Action{Kind: operation.KindCreateSubscription, ID: id, Expr: expr, State: state})
}

// CreateStream compiles and dispatches a CreateStream.
func (c *Compiler) CreateStream(ctx context.Context, id ir.URI, expr ir.Expr, state ir.Value) error {
	return c.run(ctx, Action{Kind: operation.KindCreateStream, ID: id, Expr: expr, State: state})
}

// Define compiles and dispatches one of the four define variants.
func (c *Compiler) Define(ctx context.Context, kind operation.Kind, id ir.URI, expr ir.Expr, state ir.Value) error {
	switch kind {
	case operation.KindDefineObservable, operation.KindDefineObserver,
		operation.KindDefineStreamFactory, operation.KindDefineSubscriptionFactory:
	default:
		return &operation.ArgumentError{Param: "kind", Message: string(kind) + " is not a define operation"}
	}
	return c.run(ctx, Action{Kind: kind, ID: id, Expr: expr, State: state})
}

// Undefine compiles and dispatches one of the four undefine variants.
func (c *Compiler) Undefine(ctx context.Context, kind operation.Kind, id ir.URI) error {
	switch kind {
	case operation.KindUndefineObservable, operation.KindUndefineObserver,
		operation.KindUndefineStreamFactory, operation.KindUndefineSubscriptionFactory:
	default:
		return &operation.ArgumentError{Param: "kind", Message: string(kind) + " is not an undefine operation"}
	}
	return c.run(ctx, Action{Kind: kind, ID: id})
}

// OnNext dispatches ObserverOnNext. A nil value is sent as null.
func (c *Compiler) OnNext(ctx context.Context, id ir.URI, value ir.Value) error {
	return c.run(ctx, Action{Kind: operation.KindObserverOnNext, ID: id, State: ir.OrNull(value)})
}

// OnError dispatches ObserverOnError carrying err's message.
func (c *Compiler) OnError(ctx context.Context, id ir.URI, err error) error {
	if err == nil {
		return operation.Required("error")
	}
	return c.run(ctx, Action{Kind: operation.KindObserverOnError, ID: id, State: ir.String(err.Error())})
}

// OnCompleted dispatches ObserverOnCompleted.
func (c *Compiler) OnCompleted(ctx context.Context, id ir.URI) error {
	return c.run(ctx, Action{Kind: operation.KindObserverOnCompleted, ID: id})
}

// DeleteSubscription dispatches DeleteSubscription.
func (c *Compiler) DeleteSubscription(ctx context.Context, id ir.URI) error {
	return c.run(ctx, Action{Kind: operation.KindDeleteSubscription, ID: id})
}

// DeleteStream dispatches DeleteStream.
func (c *Compiler) DeleteStream(ctx context.Context, id ir.URI) error {
	return c.run(ctx, Action{Kind: operation.KindDeleteStream, ID: id})
}

// Query compiles expr into a MetadataQuery, dispatches it and returns the
// engine's answer.
func (c *Compiler) Query(ctx context.Context, expr ir.Expr) (ir.Value, error) {
	return c.Execute(ctx, Action{Kind: operation.KindMetadataQuery, Expr: expr})
}
