package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hoenirvili/CFGTrace/internal/cfg"
	"github.com/hoenirvili/CFGTrace/internal/latticeexport"
	"github.com/hoenirvili/CFGTrace/internal/sharedmem"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <window-file>",
		Short: "Convert a shared-memory window's CFG into a lattice.CFGGraph and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("export: read %s: %w", args[0], err)
			}

			window, err := sharedmem.Open(data)
			if err != nil {
				return fmt.Errorf("export: parse header: %w", err)
			}

			g, _, err := cfg.Deserialize(window.CFG())
			if err != nil {
				return fmt.Errorf("export: decode graph: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(latticeexport.ConvertGraph(g))
		},
	}
	return cmd
}
