// Package metrics records Prometheus metrics for operation dispatch.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/rxq/internal/engine"
	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/operation"
)

const (
	namespace = "rxq"
	subsystem = "dispatch"

	statusSuccess = "success"
	statusFailure = "failure"
)

// Dispatch implements engine.Metrics.
type Dispatch struct {
	operations *prometheus.CounterVec   // By kind and status (success/failure)
	duration   *prometheus.HistogramVec // By kind
	lastError  prometheus.Gauge         // Unix time of the last failed dispatch
}

// New creates the dispatch metrics and registers them with reg.
// A nil reg registers nothing, which keeps the collectors usable in tests.
func New(reg prometheus.Registerer) (*Dispatch, error) {
	m := &Dispatch{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "operations_total",
			Help:      "Total number of dispatched operations",
		}, []string{"kind", "status"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "duration_seconds",
			Help:      "Engine dispatch duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"kind"}),

		lastError: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "last_error_timestamp_seconds",
			Help:      "Unix time of the most recent failed dispatch",
		}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.operations, m.duration, m.lastError} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveDispatch records one dispatched operation.
func (m *Dispatch) ObserveDispatch(kind operation.Kind, elapsed time.Duration, err error) {
	status := statusSuccess
	if err != nil {
		status = statusFailure
		m.lastError.SetToCurrentTime()
	}
	m.operations.WithLabelValues(string(kind), status).Inc()
	m.duration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// Count returns the number of operations of kind recorded with the given
// outcome.
func (m *Dispatch) Count(kind operation.Kind, failed bool) float64 {
	status := statusSuccess
	if failed {
		status = statusFailure
	}
	return counterValue(m.operations.WithLabelValues(string(kind), status))
}

// Instrument returns an engine that records every dispatch to next in m.
// Unlike a Dispatcher it neither validates nor restamps seqs, so it suits
// replays that carry their own.
func Instrument(next engine.Engine, m engine.Metrics) engine.Engine {
	return engine.EngineFunc(func(ctx context.Context, op operation.Operation) (ir.Value, error) {
		start := time.Now()
		v, err := next.Dispatch(ctx, op)
		m.ObserveDispatch(op.Kind(), time.Since(start), err)
		return v, err
	})
}
