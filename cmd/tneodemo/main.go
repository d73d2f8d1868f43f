// Command tneodemo exercises the tneo scheduler end to end over the
// simarch simulated architecture: a runnable demo workload, the spec's
// boundary scenarios on demand, and a randomized invariant checker.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/riuson/tneo/simarch"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

var cfgFile string

func main() {
	// The kernel's entire scheduling model assumes one core; automaxprocs
	// would otherwise set GOMAXPROCS from the container's CPU quota, which
	// on a multi-core host lets simarch's task goroutines genuinely run in
	// parallel instead of one-at-a-time under the baton. Call it anyway
	// (for its logging/diagnostics value), then pin to 1 explicitly.
	if _, err := maxprocs.Set(); err != nil {
		fmt.Fprintf(os.Stderr, "tneodemo: automaxprocs: %v\n", err)
	}
	runtime.GOMAXPROCS(1)
	if err := simarch.PinToCPU0(); err != nil {
		fmt.Fprintf(os.Stderr, "tneodemo: pin to cpu0: %v\n", err)
	}

	root := &cobra.Command{
		Use:           "tneodemo",
		Short:         "Drive the tneo scheduler over a simulated architecture port",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a kernel config YAML file (optional)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newScenarioCmd())
	root.AddCommand(newInvariantsCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
