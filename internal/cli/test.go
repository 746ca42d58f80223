package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rxq/internal/engine"
	"github.com/roach88/rxq/internal/harness"
	"github.com/roach88/rxq/internal/operation"
	"github.com/roach88/rxq/internal/store"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios through the journal engine",
		Long: `Run every YAML scenario in a directory through a scratch journal engine.

Each scenario's operations are dispatched in order, read back from the
journal and checked three ways: the journaled operations must equal the
scenario's, the scenario assertions must hold, and the canonical snapshot
must match <scenario>.golden next to the scenario file when one exists.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  rxq test ./scenarios
  rxq test ./scenarios --filter "01_*"
  rxq test ./scenarios --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.ensure(cmd); err != nil {
				return err
			}
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on the file name")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenarios directory not found: %s", dir), nil)
	}

	files, err := findScenarioFiles(dir, opts.Filter)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		r := runScenario(commandContext(cmd), file, opts)
		formatter.VerboseLog("scenario %s: pass=%v", r.Name, r.Pass)
		result.Scenarios = append(result.Scenarios, r)
		if r.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if err := formatter.Success(result, func(w io.Writer) { writeTestText(w, result) }); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// findScenarioFiles lists *.yaml and *.yml files in dir, sorted by name.
func findScenarioFiles(dir, filter string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	if filter == "" {
		sort.Strings(files)
		return files, nil
	}
	var kept []string
	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		ok, err := filepath.Match(filter, name)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
		if ok {
			kept = append(kept, f)
		}
	}
	sort.Strings(kept)
	return kept, nil
}

func runScenario(ctx context.Context, file string, opts *TestOptions) ScenarioResult {
	name := filepath.Base(file)
	fail := func(err error) ScenarioResult {
		return ScenarioResult{Name: name, Errors: []string{err.Error()}}
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return fail(err)
	}
	name = scenario.Name
	expected, err := scenario.Expected()
	if err != nil {
		return fail(err)
	}

	journaled, err := journalRoundTrip(ctx, expected, opts)
	if err != nil {
		return fail(err)
	}

	var errs []string
	for i := range expected {
		if i >= len(journaled) {
			errs = append(errs, fmt.Sprintf("operation %d missing from journal", i))
			break
		}
		if d := operation.Diff(expected[i], journaled[i]); d != "" {
			errs = append(errs, fmt.Sprintf("operation %d changed in the journal: %s", i, d))
		}
	}
	if err := scenario.Check(journaled); err != nil {
		for _, e := range unjoin(err) {
			errs = append(errs, e.Error())
		}
	}
	if err := checkGolden(goldenPath(file), journaled, opts.Update); err != nil {
		errs = append(errs, err.Error())
	}
	return ScenarioResult{Name: name, Pass: len(errs) == 0, Errors: errs}
}

// journalRoundTrip dispatches ops into a scratch journal and reads them back.
func journalRoundTrip(ctx context.Context, ops []operation.Operation, opts *TestOptions) ([]operation.Operation, error) {
	dir, err := os.MkdirTemp("", "rxq-scenario-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "journal.db"))
	if err != nil {
		return nil, err
	}
	defer st.Close()

	d, err := engine.NewDispatcher(st, engine.WithLogger(opts.Logger))
	if err != nil {
		return nil, err
	}
	for i, op := range ops {
		if _, err := d.Dispatch(ctx, op); err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
	}

	entries, err := st.ReadJournal(ctx, 0)
	if err != nil {
		return nil, err
	}
	out := make([]operation.Operation, len(entries))
	for i, e := range entries {
		out[i] = e.Op
	}
	return out, nil
}

func goldenPath(scenarioFile string) string {
	return strings.TrimSuffix(scenarioFile, filepath.Ext(scenarioFile)) + ".golden"
}

// checkGolden compares the snapshot of ops with path. A missing golden file
// passes unless update is set, in which case it is written.
func checkGolden(path string, ops []operation.Operation, update bool) error {
	got, err := harness.Snapshot(ops)
	if err != nil {
		return err
	}
	if update {
		return os.WriteFile(path, got, 0o644)
	}
	want, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !bytes.Equal(want, got) {
		return fmt.Errorf("snapshot differs from %s (run with --update to accept)", filepath.Base(path))
	}
	return nil
}

func writeTestText(w io.Writer, r TestResult) {
	if r.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, s := range r.Scenarios {
		mark := "PASS"
		if !s.Pass {
			mark = "FAIL"
		}
		fmt.Fprintf(w, "%s %s\n", mark, s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", r.Passed, r.Failed, r.Total)
}

// unjoin splits an errors.Join result back into its parts.
func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
