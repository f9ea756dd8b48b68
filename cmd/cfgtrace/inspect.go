package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hoenirvili/CFGTrace/internal/cfg"
	"github.com/hoenirvili/CFGTrace/internal/sharedmem"
)

// nodeView is the JSON-friendly projection of a block.Node used by inspect.
type nodeView struct {
	Entry     uint64 `json:"entry"`
	Iteration uint64 `json:"iteration"`
	Closed    bool   `json:"closed"`
	TrueSucc  uint64 `json:"true_succ"`
	FalseSucc uint64 `json:"false_succ"`
	Visits    uint32 `json:"visits"`
	BodyLen   int    `json:"body_len"`
}

type graphView struct {
	FirstEntry uint64     `json:"first_entry"`
	Nodes      []nodeView `json:"nodes"`
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <window-file>",
		Short: "Dump a shared-memory window file's CFG as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("inspect: read %s: %w", args[0], err)
			}

			window, err := sharedmem.Open(data)
			if err != nil {
				return fmt.Errorf("inspect: parse header: %w", err)
			}

			g, _, err := cfg.Deserialize(window.CFG())
			if err != nil {
				return fmt.Errorf("inspect: decode graph: %w", err)
			}

			view := graphView{FirstEntry: g.FirstEntry}
			for _, n := range g.Nodes {
				view.Nodes = append(view.Nodes, nodeView{
					Entry:     n.Entry,
					Iteration: n.Iteration,
					Closed:    n.Closed,
					TrueSucc:  n.TrueSucc,
					FalseSucc: n.FalseSucc,
					Visits:    n.Visits,
					BodyLen:   len(n.Body),
				})
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		},
	}
	return cmd
}
