package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/rxq/internal/config"
	"github.com/roach88/rxq/internal/engine"
	"github.com/roach88/rxq/internal/metrics"
	"github.com/roach88/rxq/internal/natsengine"
	"github.com/roach88/rxq/internal/store"
)

// openedEngine is an engine built from configuration plus what is needed to
// tear it down and to resume its sequence.
type openedEngine struct {
	engine.Engine
	lastSeq int64
	close   func() error
}

// openEngine builds the engine named by cfg.Engine.Kind. A non-empty
// journalPath overrides engine.journal.path.
func openEngine(ctx context.Context, cfg *config.Config, journalPath string, logger *slog.Logger) (*openedEngine, error) {
	switch cfg.Engine.Kind {
	case config.EngineJournal:
		path := cfg.Engine.Journal.Path
		if journalPath != "" {
			path = journalPath
		}
		st, err := store.Open(path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		last, err := st.LastSeq(ctx)
		if err != nil {
			st.Close()
			return nil, WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		logger.Debug("journal engine ready", "path", path, "last_seq", last)
		return &openedEngine{Engine: st, lastSeq: last, close: st.Close}, nil

	case config.EngineNATS:
		nc, err := natsengine.Connect(cfg.Engine.NATS.URL, "rxq", cfg.Engine.NATS.Timeout)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to connect", err)
		}
		e, err := natsengine.New(nc, cfg.Engine.NATS.SubjectPrefix,
			natsengine.WithTimeout(cfg.Engine.NATS.Timeout),
			natsengine.WithLogger(logger),
		)
		if err != nil {
			nc.Close()
			return nil, err
		}
		logger.Debug("nats engine ready", "url", cfg.Engine.NATS.URL, "prefix", cfg.Engine.NATS.SubjectPrefix)
		return &openedEngine{Engine: e, close: drain(nc)}, nil
	}
	return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown engine kind %q", cfg.Engine.Kind))
}

func drain(nc *nats.Conn) func() error {
	return func() error { return nc.Drain() }
}

// newDispatcher wraps e in a Dispatcher that resumes after lastSeq, checks
// engine.ir_version and, when metrics are enabled, records into a fresh
// registry. The returned gatherer is nil when metrics are disabled.
func newDispatcher(cfg *config.Config, e engine.Engine, lastSeq int64, logger *slog.Logger) (*engine.Dispatcher, prometheus.Gatherer, error) {
	opts := []engine.DispatcherOption{
		engine.WithLogger(logger),
		engine.WithClock(engine.NewClockAt(lastSeq)),
	}
	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		m, err := metrics.New(reg)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, engine.WithMetrics(m))
		gatherer = reg
	}
	d, err := engine.NewDispatcher(engine.VersionedEngine{Engine: e, Constraint: cfg.Engine.IRVersion}, opts...)
	if err != nil {
		return nil, nil, err
	}
	return d, gatherer, nil
}

// metricSamples summarizes g, or returns nil when metrics are disabled.
func metricSamples(g prometheus.Gatherer) ([]metrics.Sample, error) {
	if g == nil {
		return nil, nil
	}
	return metrics.Summarize(g)
}
