// Command rxq inspects binding catalogs, journals and engines for compiled
// reactive operations.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/rxq/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
