package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/roach88/rxq/internal/compiler"
	"github.com/roach88/rxq/internal/reactive"
	"github.com/roach88/rxq/internal/registry"
)

// CatalogOptions holds flags for the catalog command.
type CatalogOptions struct {
	*RootOptions
	Watch      bool
	NoBuiltins bool
	Debounce   time.Duration
}

// BindingRow is one catalog binding as reported.
type BindingRow struct {
	Name      string `json:"name"`
	Signature string `json:"signature"`
	URI       string `json:"uri"`
	Type      string `json:"type"`
}

// ResourceRow is one catalog resource as reported.
type ResourceRow struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	URI  string `json:"uri"`
	Type string `json:"type"`
}

// CatalogReport is the output of a successful catalog check.
type CatalogReport struct {
	Dir       string        `json:"dir"`
	Bindings  []BindingRow  `json:"bindings"`
	Resources []ResourceRow `json:"resources"`
	// Registered counts every member in the resulting registry, builtins
	// included.
	Registered int `json:"registered"`
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts, Debounce: 200 * time.Millisecond}

	cmd := &cobra.Command{
		Use:   "catalog [dir]",
		Short: "Compile and check a CUE binding catalog",
		Long: `Compile every CUE file in a catalog directory, validate the bindings and
resources, and register them next to the built-in operators and metadata
roots. Conflicting bindings are reported.

The directory defaults to catalog.dir from the configuration.

Exit codes:
  0 - Catalog is valid
  1 - Catalog failed to compile, validate or register
  2 - Command error (directory not found, etc.)

Examples:
  rxq catalog ./catalog
  rxq catalog ./catalog --watch
  rxq catalog --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.ensure(cmd); err != nil {
				return err
			}
			dir := opts.Config.Catalog.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			return runCatalog(opts, dir, cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "re-check whenever a .cue file changes")
	cmd.Flags().BoolVar(&opts.NoBuiltins, "no-builtins", false, "do not register built-in operators and metadata roots")

	return cmd
}

func runCatalog(opts *CatalogOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("catalog directory not found: %s", dir), nil)
	}

	if !opts.Watch {
		return reportCatalog(opts, dir, formatter)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// In watch mode a broken catalog is reported, not fatal.
	_ = reportCatalog(opts, dir, formatter)
	return watchCatalog(ctx, dir, opts.Debounce, opts.Logger, func() {
		formatter.VerboseLog("catalog changed, re-checking %s", dir)
		_ = reportCatalog(opts, dir, formatter)
	})
}

func reportCatalog(opts *CatalogOptions, dir string, formatter *OutputFormatter) error {
	report, err := checkCatalog(dir, !opts.NoBuiltins)
	if err != nil {
		var verrs validationErrors
		var cerr *compiler.CompileError
		switch {
		case errors.As(err, &verrs):
			return formatter.Fail(ExitFailure, ErrCodeCatalog, fmt.Sprintf("%d validation error(s)", len(verrs)), []compiler.ValidationError(verrs))
		case errors.As(err, &cerr):
			return formatter.Fail(ExitFailure, ErrCodeCatalog, cerr.Error(), nil)
		case errors.Is(err, registry.ErrConflict), errors.Is(err, registry.ErrInvalidBinding):
			return formatter.Fail(ExitFailure, ErrCodeRegistry, err.Error(), nil)
		default:
			return formatter.Fail(ExitFailure, ErrCodeGeneric, err.Error(), nil)
		}
	}
	opts.Logger.Info("catalog checked", "dir", dir, "bindings", len(report.Bindings), "resources", len(report.Resources))
	return formatter.Success(report, func(w io.Writer) { writeCatalogText(w, report) })
}

type validationErrors []compiler.ValidationError

func (v validationErrors) Error() string {
	if len(v) == 0 {
		return "no validation errors"
	}
	return fmt.Sprintf("%s (and %d more)", v[0].Error(), len(v)-1)
}

// checkCatalog compiles, validates and registers the catalog in dir.
func checkCatalog(dir string, builtins bool) (*CatalogReport, error) {
	c, err := compiler.LoadCatalog(dir)
	if err != nil {
		return nil, err
	}
	if errs := compiler.ValidateCatalog(c); len(errs) > 0 {
		return nil, validationErrors(errs)
	}

	reg := registry.New()
	if builtins {
		if err := reactive.RegisterBuiltins(reg); err != nil {
			return nil, err
		}
	}
	if err := c.Register(reg); err != nil {
		return nil, err
	}
	reg.Seal()

	report := &CatalogReport{
		Dir:        dir,
		Bindings:   make([]BindingRow, 0, len(c.Bindings)),
		Resources:  make([]ResourceRow, 0, len(c.Resources)),
		Registered: reg.Len(),
	}
	for _, b := range c.Bindings {
		m, _ := b.ToMember()
		t, _ := b.BindingType(m)
		report.Bindings = append(report.Bindings, BindingRow{Name: b.Name, Signature: m.Signature(), URI: b.URI, Type: t.String()})
	}
	for _, r := range c.Resources {
		report.Resources = append(report.Resources, ResourceRow{Name: r.Name, Kind: r.Kind, URI: r.URI, Type: r.Type})
	}
	return report, nil
}

func writeCatalogText(w io.Writer, r *CatalogReport) {
	fmt.Fprintf(w, "Catalog %s: %d binding(s), %d resource(s), %d registered member(s)\n",
		r.Dir, len(r.Bindings), len(r.Resources), r.Registered)
	if len(r.Bindings) > 0 {
		fmt.Fprintln(w, "\nBindings:")
		for _, b := range r.Bindings {
			fmt.Fprintf(w, "  %-20s %s -> %s\n", b.Name, b.Signature, b.URI)
		}
	}
	if len(r.Resources) > 0 {
		fmt.Fprintln(w, "\nResources:")
		for _, res := range r.Resources {
			fmt.Fprintf(w, "  %-20s %-20s %s : %s\n", res.Name, res.Kind, res.URI, res.Type)
		}
	}
}

// watchCatalog calls onChange after .cue files in dir are written, created,
// removed or renamed. Bursts of events within debounce collapse into one
// call. Returns when ctx is done.
func watchCatalog(ctx context.Context, dir string, debounce time.Duration, logger *slog.Logger, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start watcher", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return WrapExitError(ExitCommandError, "failed to watch catalog", err)
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(ev.Name) != ".cue" || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("catalog watcher error", "error", err)
		case <-pending:
			pending = nil
			onChange()
		}
	}
}

// commandContext returns cmd's context, or Background when it has none.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
