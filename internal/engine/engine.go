package engine

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/operation"
)

// Engine executes operations. Implementations must treat each call as
// atomic: the operation is either accepted or the call fails.
//
// The result is ir.Null{} for every variant except MetadataQuery, whose
// result is the query answer.
type Engine interface {
	Dispatch(ctx context.Context, op operation.Operation) (ir.Value, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, op operation.Operation) (ir.Value, error)

// Dispatch calls f(ctx, op).
func (f EngineFunc) Dispatch(ctx context.Context, op operation.Operation) (ir.Value, error) {
	return f(ctx, op)
}

// Versioned is implemented by engines that accept a limited range of IR
// versions. The constraint uses semver syntax, e.g. "^1.0" or ">= 1.0, < 3".
type Versioned interface {
	IRConstraint() string
}

// Metrics receives one observation per dispatched operation.
// Implemented by metrics.Dispatch.
type Metrics interface {
	ObserveDispatch(kind operation.Kind, elapsed time.Duration, err error)
}

type seqKey struct{}

// WithSeq returns a context carrying the dispatch sequence number.
func WithSeq(ctx context.Context, seq int64) context.Context {
	return context.WithValue(ctx, seqKey{}, seq)
}

// SeqFrom returns the dispatch sequence number carried by ctx.
func SeqFrom(ctx context.Context) (int64, bool) {
	seq, ok := ctx.Value(seqKey{}).(int64)
	return seq, ok
}

// Dispatcher forwards operations to an Engine in call order, stamping each
// with the next Clock value.
//
// Dispatcher itself implements Engine, so it can wrap another Dispatcher or
// be handed to anything that expects an Engine.
type Dispatcher struct {
	engine  Engine
	clock   *Clock
	logger  *slog.Logger
	metrics Metrics
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithClock sets the sequence clock, e.g. NewClockAt(last) when resuming
// a journal.
func WithClock(c *Clock) DispatcherOption {
	return func(d *Dispatcher) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// NewDispatcher wraps e. If e declares an IR constraint, the current
// ir.IRVersion must satisfy it.
func NewDispatcher(e Engine, opts ...DispatcherOption) (*Dispatcher, error) {
	if e == nil {
		return nil, &DispatchError{Code: ErrCodeNoEngine, Message: "engine is nil"}
	}
	if v, ok := e.(Versioned); ok {
		if err := CheckIRVersion(v.IRConstraint()); err != nil {
			return nil, err
		}
	}
	d := &Dispatcher{
		engine: e,
		clock:  NewClock(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch validates op, assigns it the next sequence number and hands it
// to the engine. Engine failures are wrapped in a DispatchError; argument
// errors from validation are returned as is.
func (d *Dispatcher) Dispatch(ctx context.Context, op operation.Operation) (ir.Value, error) {
	if err := operation.Validate(op); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &DispatchError{Code: ErrCodeCanceled, Kind: op.Kind(), Err: err}
	}

	seq := d.clock.Next()
	log := d.logger.With("seq", seq, "kind", string(op.Kind()))
	if id := op.Target(); id != "" {
		log = log.With("id", string(id))
	}
	if hash, err := operation.ID(op); err == nil {
		log = log.With("hash", hash[:12])
	}
	log.Debug("dispatch operation")

	start := time.Now()
	result, err := d.engine.Dispatch(WithSeq(ctx, seq), op)
	elapsed := time.Since(start)
	if d.metrics != nil {
		d.metrics.ObserveDispatch(op.Kind(), elapsed, err)
	}
	if err != nil {
		log.Warn("operation rejected", "error", err)
		return nil, &DispatchError{Code: ErrCodeEngineFailed, Kind: op.Kind(), Seq: seq, Err: err}
	}
	log.Debug("operation accepted", "elapsed", elapsed)
	return ir.OrNull(result), nil
}

// Seq returns the sequence number of the most recent dispatch.
func (d *Dispatcher) Seq() int64 {
	return d.clock.Current()
}

// Engine returns the wrapped engine.
func (d *Dispatcher) Engine() Engine {
	return d.engine
}
