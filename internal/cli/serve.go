package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/rxq/internal/config"
	"github.com/roach88/rxq/internal/natsengine"
	"github.com/roach88/rxq/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Database string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Journal operations received over NATS",
		Long: `Subscribe to <engine.nats.subject_prefix>.> and dispatch every received
operation to a journal database. Metadata queries are answered from the
journal's catalog on the request's reply subject.

Operations keep the seq they were published with, so redelivered
messages are accepted once.

Example:
  rxq serve --config nats.yaml --db ./rxq.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.ensure(cmd); err != nil {
				return err
			}
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal database (overrides engine.journal.path)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg := opts.Config
	logger := opts.Logger
	path := cfg.Engine.Journal.Path
	if opts.Database != "" {
		path = opts.Database
	}

	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("error closing journal", "error", err)
		}
	}()

	nats := cfg.Engine.NATS
	if nats.URL == "" {
		nats = config.Default().Engine.NATS
	}
	nc, err := natsengine.Connect(nats.URL, "rxq-serve", nats.Timeout)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect", err)
	}
	defer nc.Close()

	h, err := natsengine.NewHandler(st, cfg.Engine.IRVersion, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub, err := natsengine.Serve(ctx, nc, nats.SubjectPrefix, h)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to subscribe", err)
	}
	logger.Info("serving", "subject", nats.SubjectPrefix+".>", "journal", path)
	fmt.Fprintf(cmd.OutOrStdout(), "Journaling %s.> into %s. Press Ctrl-C to stop.\n", nats.SubjectPrefix, path)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		logger.Warn("drain failed", "error", err)
	}
	logger.Info("stopped")
	return nil
}
