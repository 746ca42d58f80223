package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/rxq/internal/operation"
	"github.com/roach88/rxq/internal/queryir"
	"github.com/roach88/rxq/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Database   string
	After      int64
	Limit      int
	Kind       string
	Collection string
}

// JournalRow is one journal entry as reported.
type JournalRow struct {
	Seq       int64  `json:"seq"`
	Kind      string `json:"kind"`
	Target    string `json:"target,omitempty"`
	OpID      string `json:"op_id"`
	IRVersion string `json:"ir_version"`
}

// LiveResource is one live catalog resource.
type LiveResource struct {
	URI string `json:"uri"`
	Seq int64  `json:"seq"`
}

// JournalReport is the output of the journal command.
type JournalReport struct {
	Database  string            `json:"database"`
	LastSeq   int64             `json:"last_seq"`
	Counts    map[string]int64  `json:"counts"`
	Entries   []JournalRow      `json:"entries"`
	Resources []LiveResource `json:"resources,omitempty"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List journaled operations",
		Long: `List the operations recorded by the journal engine, in seq order, with
per-kind counts. With --collection, also list the live resources of one
catalog collection (observables, observers, stream_factories,
subscription_factories, subscriptions, streams).

The database defaults to engine.journal.path from the configuration.

Examples:
  rxq journal --db ./rxq.db
  rxq journal --db ./rxq.db --after 100 --limit 20
  rxq journal --db ./rxq.db --kind CreateSubscription
  rxq journal --db ./rxq.db --collection subscriptions --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.ensure(cmd); err != nil {
				return err
			}
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the journal database")
	cmd.Flags().Int64Var(&opts.After, "after", 0, "only entries with seq greater than this")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of entries (0 = all)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only entries of this operation kind")
	cmd.Flags().StringVar(&opts.Collection, "collection", "", "also list live resources of this collection")

	return cmd
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := opts.formatter(cmd)

	if opts.Kind != "" && !knownKind(opts.Kind) {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("unknown operation kind %q", opts.Kind), nil)
	}
	if opts.Collection != "" && !knownCollection(opts.Collection) {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("unknown collection %q", opts.Collection), nil)
	}

	path := opts.Database
	if path == "" {
		path = opts.Config.Engine.Journal.Path
	}
	st, err := store.Open(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, fmt.Sprintf("failed to open journal: %v", err), nil)
	}
	defer st.Close()

	entries, err := st.ReadJournal(ctx, opts.After)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, err.Error(), nil)
	}
	counts, err := st.CountByKind(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, err.Error(), nil)
	}
	last, err := st.LastSeq(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, err.Error(), nil)
	}

	report := JournalReport{
		Database: path,
		LastSeq:  last,
		Counts:   make(map[string]int64, len(counts)),
		Entries:  []JournalRow{},
	}
	for k, n := range counts {
		report.Counts[string(k)] = n
	}
	for _, e := range entries {
		if opts.Kind != "" && string(e.Op.Kind()) != opts.Kind {
			continue
		}
		if opts.Limit > 0 && len(report.Entries) >= opts.Limit {
			break
		}
		id, err := operation.ID(e.Op)
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeJournal, fmt.Sprintf("seq %d: %v", e.Seq, err), nil)
		}
		report.Entries = append(report.Entries, JournalRow{
			Seq:       e.Seq,
			Kind:      string(e.Op.Kind()),
			Target:    string(e.Op.Target()),
			OpID:      id,
			IRVersion: e.IRVersion,
		})
	}

	if opts.Collection != "" {
		resources, err := st.Resources(ctx, opts.Collection)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, err.Error(), nil)
		}
		report.Resources = make([]LiveResource, 0, len(resources))
		for _, r := range resources {
			report.Resources = append(report.Resources, LiveResource{URI: string(r.URI), Seq: r.Seq})
		}
	}

	return formatter.Success(report, func(w io.Writer) { writeJournalText(w, report, opts.Collection) })
}

func writeJournalText(w io.Writer, r JournalReport, collection string) {
	fmt.Fprintf(w, "Journal %s: last seq %d\n", r.Database, r.LastSeq)
	if len(r.Entries) == 0 {
		fmt.Fprintln(w, "No entries.")
	}
	for _, e := range r.Entries {
		fmt.Fprintf(w, "%6d  %-28s %-40s %s\n", e.Seq, e.Kind, e.Target, e.OpID[:12])
	}

	if len(r.Counts) > 0 {
		kinds := make([]string, 0, len(r.Counts))
		for k := range r.Counts {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		fmt.Fprintln(w, "\nCounts:")
		for _, k := range kinds {
			fmt.Fprintf(w, "  %-28s %d\n", k, r.Counts[k])
		}
	}

	if collection != "" {
		fmt.Fprintf(w, "\nLive %s: %d\n", collection, len(r.Resources))
		for _, res := range r.Resources {
			fmt.Fprintf(w, "  %s (seq %d)\n", res.URI, res.Seq)
		}
	}
}

func knownKind(kind string) bool {
	for _, k := range operation.Kinds {
		if string(k) == kind {
			return true
		}
	}
	return false
}

func knownCollection(name string) bool {
	for _, c := range queryir.Collections {
		if c == name {
			return true
		}
	}
	return false
}
