package cli

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/rxq/internal/config"
	"github.com/roach88/rxq/internal/engine"
	"github.com/roach88/rxq/internal/metrics"
	"github.com/roach88/rxq/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database   string
	Into       string
	After      int64
	Constraint string
}

// ReplayReport is the output of the replay command.
type ReplayReport struct {
	Source   string           `json:"source"`
	Target   string           `json:"target"`
	Replayed int              `json:"replayed"`
	Skipped  int              `json:"skipped"`
	LastSeq  int64            `json:"last_seq"`
	Metrics  []metrics.Sample `json:"metrics,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a journal into an engine",
		Long: `Re-dispatch journaled operations, in seq order, to another engine.

With --into, the target is a second journal database; operations keep their
original seq, so replaying twice is a no-op. Without --into, the target is
the engine from the configuration (engine.kind), e.g. a NATS engine.

Entries whose IR version does not satisfy --constraint are skipped.

Exit codes:
  0 - All selected entries replayed
  1 - The target rejected an operation
  2 - Command error (database not found, engine unreachable, etc.)

Examples:
  rxq replay --db ./rxq.db --into ./copy.db
  rxq replay --db ./rxq.db --after 1200 --constraint "^1.0"
  rxq replay --db ./rxq.db --config nats.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.ensure(cmd); err != nil {
				return err
			}
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the source journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Into, "into", "", "target journal database")
	cmd.Flags().Int64Var(&opts.After, "after", 0, "only entries with seq greater than this")
	cmd.Flags().StringVar(&opts.Constraint, "constraint", "", "semver constraint on journaled IR versions")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := opts.formatter(cmd)

	src, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, fmt.Sprintf("failed to open journal: %v", err), nil)
	}
	defer src.Close()

	cfg := *opts.Config
	target := cfg.Engine.Kind
	if opts.Into != "" {
		cfg.Engine.Kind = config.EngineJournal
		target = opts.Into
	} else if cfg.Engine.Kind == config.EngineJournal {
		target = cfg.Engine.Journal.Path
	}
	dst, err := openEngine(ctx, &cfg, opts.Into, opts.Logger)
	if err != nil {
		return formatter.Fail(GetExitCode(err), ErrCodeConnection, err.Error(), nil)
	}
	defer dst.close()

	// Metrics wrap the target directly: the journal seq travels in the
	// context, so a Dispatcher must not restamp it.
	var sink engine.Engine = dst
	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		m, err := metrics.New(reg)
		if err != nil {
			return err
		}
		sink = metrics.Instrument(dst, m)
		gatherer = reg
	}

	res, err := src.Replay(ctx, sink, store.ReplayOptions{
		AfterSeq:   opts.After,
		Constraint: opts.Constraint,
		Logger:     opts.Logger,
	})
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeEngine, err.Error(), res)
	}

	samples, err := metricSamples(gatherer)
	if err != nil {
		return err
	}
	report := ReplayReport{
		Source:   opts.Database,
		Target:   target,
		Replayed: res.Replayed,
		Skipped:  res.Skipped,
		LastSeq:  res.LastSeq,
		Metrics:  samples,
	}
	opts.Logger.Info("replay finished", "replayed", res.Replayed, "skipped", res.Skipped, "last_seq", res.LastSeq)
	return formatter.Success(report, func(w io.Writer) {
		fmt.Fprintf(w, "Replayed %d operation(s) from %s into %s (skipped %d, last seq %d)\n",
			report.Replayed, report.Source, report.Target, report.Skipped, report.LastSeq)
		for _, s := range report.Metrics {
			fmt.Fprintf(w, "  %-28s %-8s %.0f\n", s.Kind, s.Status, s.Value)
		}
	})
}
