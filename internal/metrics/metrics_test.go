package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rxq/internal/engine"
	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/operation"
)

func TestObserveDispatch(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	m.ObserveDispatch(operation.KindObserverOnNext, time.Millisecond, nil)
	m.ObserveDispatch(operation.KindObserverOnNext, time.Millisecond, nil)
	m.ObserveDispatch(operation.KindObserverOnNext, time.Millisecond, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("ObserverOnNext", "success")))
	assert.Equal(t, 1.0, m.Count(operation.KindObserverOnNext, true))
	assert.Equal(t, 0.0, m.Count(operation.KindCreateStream, false))
	assert.Positive(t, testutil.ToFloat64(m.lastError))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestNew_RegistersOnce(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	var already prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, err, &already)
}

func TestDispatcherIntegration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	fail := errors.New("rejected")
	e := engine.EngineFunc(func(_ context.Context, op operation.Operation) (ir.Value, error) {
		if op.Kind() == operation.KindObserverOnError {
			return nil, fail
		}
		return nil, nil
	})
	d, err := engine.NewDispatcher(e, engine.WithMetrics(m))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = d.Dispatch(ctx, operation.ObserverOnNext{ID: "rx://observers/o", Value: ir.Int(1)})
	require.NoError(t, err)
	_, err = d.Dispatch(ctx, operation.ObserverOnCompleted{Reference: operation.Reference{ID: "rx://observers/o"}})
	require.NoError(t, err)
	_, err = d.Dispatch(ctx, operation.ObserverOnError{ID: "rx://observers/o", Message: "x"})
	require.Error(t, err)

	expected := `
# HELP rxq_dispatch_operations_total Total number of dispatched operations
# TYPE rxq_dispatch_operations_total counter
rxq_dispatch_operations_total{kind="ObserverOnCompleted",status="success"} 1
rxq_dispatch_operations_total{kind="ObserverOnError",status="failure"} 1
rxq_dispatch_operations_total{kind="ObserverOnNext",status="success"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "rxq_dispatch_operations_total"))

	samples, err := Summarize(reg)
	require.NoError(t, err)
	assert.Equal(t, []Sample{
		{Kind: "ObserverOnCompleted", Status: "success", Value: 1},
		{Kind: "ObserverOnError", Status: "failure", Value: 1},
		{Kind: "ObserverOnNext", Status: "success", Value: 1},
	}, samples)
}

func TestSummarize_Empty(t *testing.T) {
	samples, err := Summarize(prometheus.NewRegistry())
	require.NoError(t, err)
	assert.NotNil(t, samples)
	assert.Empty(t, samples)
}

func TestInstrument_KeepsSeq(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	var seen int64
	inner := engine.EngineFunc(func(ctx context.Context, op operation.Operation) (ir.Value, error) {
		seen, _ = engine.SeqFrom(ctx)
		return ir.Int(1), nil
	})

	v, err := Instrument(inner, m).Dispatch(engine.WithSeq(context.Background(), 99),
		operation.ObserverOnNext{ID: "rx://observers/o", Value: ir.Int(1)})
	require.NoError(t, err)
	assert.Equal(t, ir.Int(1), v)
	assert.Equal(t, int64(99), seen)
	assert.Equal(t, 1.0, m.Count(operation.KindObserverOnNext, false))
}
