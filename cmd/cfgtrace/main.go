// Command cfgtrace replays a recorded instruction trace through the
// CFGTrace core end to end, exercising every operation the plugin ABI
// would otherwise drive through the host engine's callback hooks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "cfgtrace",
		Short:   "Replay, inspect, and merge control-flow-graph traces offline",
		Version: version,
	}

	root.AddCommand(newReplayCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newMergeCmd())
	root.AddCommand(newExportCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
