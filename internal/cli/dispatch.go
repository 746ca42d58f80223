package cli

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/metrics"
	"github.com/roach88/rxq/internal/operation"
)

// DispatchOptions holds flags for the dispatch command.
type DispatchOptions struct {
	*RootOptions
	Database string
}

// DispatchRow is the outcome of one dispatched operation.
type DispatchRow struct {
	Seq    int64  `json:"seq"`
	Kind   string `json:"kind"`
	Target string `json:"target,omitempty"`
	Result string `json:"result"` // canonical JSON
}

// DispatchReport is the output of the dispatch command.
type DispatchReport struct {
	Operations []DispatchRow     `json:"operations"`
	Metrics    []metrics.Sample `json:"metrics,omitempty"`
}

// NewDispatchCommand creates the dispatch command.
func NewDispatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DispatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dispatch <file|->",
		Short: "Dispatch encoded operations to the configured engine",
		Long: `Read operations, one canonical JSON object per line (the format of
golden snapshots), and dispatch them in order to the engine from the
configuration. Blank lines are skipped. Use "-" to read stdin.

Dispatch stops at the first rejected operation.

Exit codes:
  0 - Every operation was accepted
  1 - An operation was rejected
  2 - Command error (unreadable input, engine unreachable, etc.)

Examples:
  rxq dispatch ops.jsonl --db ./rxq.db
  cat ops.jsonl | rxq dispatch - --config nats.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.ensure(cmd); err != nil {
				return err
			}
			return runDispatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal database (overrides engine.journal.path)")

	return cmd
}

func runDispatch(opts *DispatchOptions, path string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := opts.formatter(cmd)

	var in io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
		}
		defer f.Close()
		in = f
	}
	ops, err := readOperations(in)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDecode, err.Error(), nil)
	}

	e, err := openEngine(ctx, opts.Config, opts.Database, opts.Logger)
	if err != nil {
		return formatter.Fail(GetExitCode(err), ErrCodeConnection, err.Error(), nil)
	}
	defer e.close()

	d, gatherer, err := newDispatcher(opts.Config, e, e.lastSeq, opts.Logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeEngine, err.Error(), nil)
	}

	report := DispatchReport{Operations: make([]DispatchRow, 0, len(ops))}
	for _, op := range ops {
		res, err := d.Dispatch(ctx, op)
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeEngine, err.Error(), report.Operations)
		}
		data, err := ir.MarshalCanonical(res)
		if err != nil {
			return err
		}
		report.Operations = append(report.Operations, DispatchRow{
			Seq:    d.Seq(),
			Kind:   string(op.Kind()),
			Target: string(op.Target()),
			Result: string(data),
		})
	}
	if report.Metrics, err = metricSamples(gatherer); err != nil {
		return err
	}

	return formatter.Success(report, func(w io.Writer) {
		fmt.Fprintf(w, "Dispatched %d operation(s)\n", len(report.Operations))
		for _, r := range report.Operations {
			fmt.Fprintf(w, "%6d  %-28s %-40s %s\n", r.Seq, r.Kind, r.Target, r.Result)
		}
	})
}

// readOperations decodes one operation per non-blank line.
func readOperations(r io.Reader) ([]operation.Operation, error) {
	var ops []operation.Operation
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		op, err := operation.Unmarshal(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ops, nil
}
