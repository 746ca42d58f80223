package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/roach88/rxq/internal/engine"
	"github.com/roach88/rxq/internal/ir"
)

// VersionInfo is the output of the version command.
type VersionInfo struct {
	Compiler   string `json:"compiler"`
	IR         string `json:"ir"`
	Go         string `json:"go"`
	Constraint string `json:"constraint,omitempty"`
	Compatible bool   `json:"compatible"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print compiler and IR versions",
		Long: `Print the compiler and IR versions, and whether the IR version satisfies
engine.ir_version from the configuration.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.ensure(cmd); err != nil {
				return err
			}
			info := VersionInfo{
				Compiler:   ir.CompilerVersion,
				IR:         ir.IRVersion,
				Go:         runtime.Version(),
				Constraint: rootOpts.Config.Engine.IRVersion,
				Compatible: engine.CheckIRVersion(rootOpts.Config.Engine.IRVersion) == nil,
			}
			return rootOpts.formatter(cmd).Success(info, func(w io.Writer) {
				fmt.Fprintf(w, "rxq %s (IR %s, %s)\n", info.Compiler, info.IR, info.Go)
				if info.Constraint != "" {
					fmt.Fprintf(w, "engine.ir_version %q satisfied: %v\n", info.Constraint, info.Compatible)
				}
			})
		},
	}
}
