// Package cfg builds, serializes, merges, and queries the control-flow
// graph accumulated from a host's instruction stream.
package cfg

import "github.com/hoenirvili/CFGTrace/internal/block"

// Graph is a control-flow graph: a keyed set of basic-block nodes plus the
// two pieces of cursor state the builder needs to route instructions.
type Graph struct {
	// Nodes maps entry address to node; keys are unique, insertion order
	// is irrelevant.
	Nodes map[uint64]*block.Node
	// FirstEntry is the entry address of the first opened node — the root
	// of the current iteration's trace.
	FirstEntry uint64
	// OpenEntry is the entry address of the node currently being appended
	// to, or 0 when idle between blocks.
	OpenEntry uint64
}

// NewGraph returns an empty graph ready to receive instructions.
func NewGraph() *Graph {
	return &Graph{Nodes: make(map[uint64]*block.Node)}
}

// NodeContainsAddress reports whether any node in the graph contains
// address in its body. Diagnostics only; not part of the hot path.
func (g *Graph) NodeContainsAddress(address uint64) bool {
	for _, n := range g.Nodes {
		if n.Contains(address) {
			return true
		}
	}
	return false
}

// MaxVisits returns the largest Visits value across all nodes, or 0 for
// an empty graph.
func (g *Graph) MaxVisits() uint64 {
	var max uint64
	for _, n := range g.Nodes {
		if uint64(n.Visits) > max {
			max = uint64(n.Visits)
		}
	}
	return max
}
