package compiler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rxq/internal/engine"
	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/normalize"
	"github.com/roach88/rxq/internal/operation"
	"github.com/roach88/rxq/internal/registry"
)

var (
	tickerType = ir.ObservableOf(ir.TypeInt)
	whereOp    = ir.Method("Observable", "Where",
		ir.ObservableOf(ir.TypeParam("T")),
		ir.ObservableOf(ir.TypeParam("T")), ir.FuncOf(ir.TypeBool, ir.TypeParam("T")))
)

type recorder struct {
	ops    []operation.Operation
	result ir.Value
	err    error
}

func (r *recorder) Dispatch(_ context.Context, op operation.Operation) (ir.Value, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.ops = append(r.ops, op)
	return r.result, nil
}

func newCompiler(t *testing.T) (*Compiler, *recorder) {
	t.Helper()
	reg := registry.New()
	reg.MustRegister(whereOp, "rx://operators/where", registry.SignatureType(whereOp))
	reg.Seal()

	rec := &recorder{}
	d, err := engine.NewDispatcher(rec)
	require.NoError(t, err)
	return New(normalize.New(reg), d, nil), rec
}

// filtered builds ticker.Where(x => x > threshold()) with a late-bound capture.
func filtered(t *testing.T, threshold func() int64) ir.Expr {
	t.Helper()
	ticker := ir.Free("rx://observables/ticker", tickerType)
	pred := ir.Lambda1("x", ir.TypeInt, func(x ir.Expr) ir.Expr {
		c := ir.CaptureValue("threshold", ir.TypeInt, func() ir.Value { return ir.Int(threshold()) })
		return ir.MustBinary(ir.OpGreater, x, c)
	})
	call, err := ir.CallOf(whereOp, nil, ticker, pred)
	require.NoError(t, err)
	return call
}

func TestCompileNormalizes(t *testing.T) {
	c, _ := newCompiler(t)
	op, err := c.Compile(Action{
		Kind: operation.KindCreateSubscription,
		ID:   "rx://subscriptions/s1",
		Expr: filtered(t, func() int64 { return 5 }),
	})
	require.NoError(t, err)

	sub, ok := op.(operation.CreateSubscription)
	require.True(t, ok)
	assert.Equal(t, ir.URI("rx://subscriptions/s1"), sub.ID)
	assert.Equal(t, "<rx://operators/where>(<rx://observables/ticker>, (x) => (x > 5))", ir.Format(sub.Expr))
	assert.True(t, ir.IsNull(operation.State(op)))
}

func TestTerminalActionsDispatchOneOperationEach(t *testing.T) {
	c, rec := newCompiler(t)
	ctx := context.Background()
	expr := filtered(t, func() int64 { return 1 })

	require.NoError(t, c.CreateSubscription(ctx, "rx://subscriptions/s1", expr, ir.String("state")))
	require.NoError(t, c.CreateStream(ctx, "rx://streams/s1", expr, nil))
	require.NoError(t, c.Define(ctx, operation.KindDefineObservable, "rx://observables/big", expr, nil))
	require.NoError(t, c.Undefine(ctx, operation.KindUndefineObservable, "rx://observables/big"))
	require.NoError(t, c.OnNext(ctx, "rx://observers/o", ir.Int(42)))
	require.NoError(t, c.OnError(ctx, "rx://observers/o", errors.New("boom")))
	require.NoError(t, c.OnCompleted(ctx, "rx://observers/o"))
	require.NoError(t, c.DeleteSubscription(ctx, "rx://subscriptions/s1"))
	require.NoError(t, c.DeleteStream(ctx, "rx://streams/s1"))

	kinds := make([]operation.Kind, len(rec.ops))
	for i, op := range rec.ops {
		kinds[i] = op.Kind()
	}
	assert.Equal(t, []operation.Kind{
		operation.KindCreateSubscription,
		operation.KindCreateStream,
		operation.KindDefineObservable,
		operation.KindUndefineObservable,
		operation.KindObserverOnNext,
		operation.KindObserverOnError,
		operation.KindObserverOnCompleted,
		operation.KindDeleteSubscription,
		operation.KindDeleteStream,
	}, kinds)

	assert.Equal(t, ir.String("state"), operation.State(rec.ops[0]))
	assert.Equal(t, ir.Int(42), rec.ops[4].(operation.ObserverOnNext).Value)
	assert.Equal(t, "boom", rec.ops[5].(operation.ObserverOnError).Message)
}

func TestNullArgumentsDispatchNothing(t *testing.T) {
	c, rec := newCompiler(t)
	ctx := context.Background()
	expr := filtered(t, func() int64 { return 1 })

	calls := map[string]func() error{
		"subscription id":   func() error { return c.CreateSubscription(ctx, "", expr, nil) },
		"subscription expr": func() error { return c.CreateSubscription(ctx, "rx://s", nil, nil) },
		"stream id":         func() error { return c.CreateStream(ctx, "", expr, nil) },
		"stream expr":       func() error { return c.CreateStream(ctx, "rx://s", nil, nil) },
		"define id":         func() error { return c.Define(ctx, operation.KindDefineObserver, "", expr, nil) },
		"define expr":       func() error { return c.Define(ctx, operation.KindDefineStreamFactory, "rx://f", nil, nil) },
		"define kind":       func() error { return c.Define(ctx, operation.KindCreateStream, "rx://f", expr, nil) },
		"undefine id":       func() error { return c.Undefine(ctx, operation.KindUndefineSubscriptionFactory, "") },
		"undefine kind":     func() error { return c.Undefine(ctx, operation.KindDeleteStream, "rx://f") },
		"next id":           func() error { return c.OnNext(ctx, "", ir.Int(1)) },
		"error id":          func() error { return c.OnError(ctx, "", errors.New("x")) },
		"error value":       func() error { return c.OnError(ctx, "rx://o", nil) },
		"completed id":      func() error { return c.OnCompleted(ctx, "") },
		"delete sub id":     func() error { return c.DeleteSubscription(ctx, "") },
		"delete stream id":  func() error { return c.DeleteStream(ctx, "") },
		"query expr": func() error {
			_, err := c.Query(ctx, nil)
			return err
		},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			require.Error(t, err)
			assert.True(t, operation.IsArgumentError(err), "got %v", err)
		})
	}
	assert.Empty(t, rec.ops)
}

func TestLateCaptureIsReadPerCall(t *testing.T) {
	c, rec := newCompiler(t)
	ctx := context.Background()

	var threshold int64
	expr := filtered(t, func() int64 { return threshold })
	for threshold = 1; threshold <= 3; threshold++ {
		require.NoError(t, c.CreateSubscription(ctx, "rx://subscriptions/s", expr, nil))
	}

	require.Len(t, rec.ops, 3)
	for i, op := range rec.ops {
		body := operation.Expression(op).(*ir.Invoke).Args[1].(*ir.Lambda).Body.(*ir.BinaryExpr)
		assert.Equal(t, ir.Int(i+1), body.Right.(*ir.Constant).Value)
	}
}

func TestQueryReturnsEngineResult(t *testing.T) {
	c, rec := newCompiler(t)
	rec.result = ir.Int(7)

	root := ir.Free("rx://metadata/observables", ir.QueryableOf(ir.TypeObject))
	v, err := c.Query(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(7), v)

	require.Len(t, rec.ops, 1)
	q, ok := rec.ops[0].(operation.MetadataQuery)
	require.True(t, ok)
	assert.True(t, ir.Equal(root, q.Expr))
}

func TestEngineErrorPropagates(t *testing.T) {
	c, rec := newCompiler(t)
	rec.err = errors.New("engine down")

	err := c.OnCompleted(context.Background(), "rx://observers/o")
	require.Error(t, err)
	assert.True(t, engine.IsEngineError(err))
	assert.ErrorIs(t, err, rec.err)
}

func TestExecuteWithoutEngine(t *testing.T) {
	c := New(nil, nil, nil)
	_, err := c.Execute(context.Background(), Action{Kind: operation.KindDeleteStream, ID: "rx://streams/s"})
	require.Error(t, err)

	var de *engine.DispatchError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, engine.ErrCodeNoEngine, de.Code)
}

func TestFailingCaptureCheckDispatchesNothing(t *testing.T) {
	c, rec := newCompiler(t)
	boom := errors.New("variable went away")
	loaded := false

	capture := ir.CaptureExpr("src", tickerType, func() ir.Expr {
		loaded = true
		return ir.Free("rx://observables/ticker", tickerType)
	})
	capture.Check = func() error { return boom }

	err := c.CreateSubscription(context.Background(), "rx://subscriptions/s1", capture, nil)
	assert.ErrorIs(t, err, boom)
	assert.False(t, loaded)
	assert.Empty(t, rec.ops)
}
