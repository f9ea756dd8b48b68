package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hoenirvili/CFGTrace/internal/cfg"
	"github.com/hoenirvili/CFGTrace/internal/sharedmem"
)

func newMergeCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "merge <window-a> <window-b>",
		Short: "Merge two standalone window files offline and write the result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := readGraph(args[0])
			if err != nil {
				return err
			}
			b, err := readGraph(args[1])
			if err != nil {
				return err
			}

			if err := cfg.Merge(a, b); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "merge: inconsistencies: %v\n", err)
			}

			if outPath == "" {
				outPath = args[0]
			}

			region := make([]byte, a.MemSize()+4096)
			window, err := sharedmem.NewHeader(region, a.MemSize(), "")
			if err != nil {
				return fmt.Errorf("merge: %w", err)
			}
			if _, err := a.Serialize(window.CFG()); err != nil {
				return fmt.Errorf("merge: encode result: %w", err)
			}

			if err := os.WriteFile(outPath, window.Region(), 0644); err != nil {
				return fmt.Errorf("merge: write %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "merged %d nodes into %s\n", len(a.Nodes), outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "output window file path (defaults to overwriting the first input)")
	return cmd
}

func readGraph(path string) (*cfg.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("merge: read %s: %w", path, err)
	}
	window, err := sharedmem.Open(data)
	if err != nil {
		return nil, fmt.Errorf("merge: parse header of %s: %w", path, err)
	}
	g, _, err := cfg.Deserialize(window.CFG())
	if err != nil {
		return nil, fmt.Errorf("merge: decode %s: %w", path, err)
	}
	return g, nil
}
