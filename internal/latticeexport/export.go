// Package latticeexport converts a finished cfg.Graph into the
// github.com/zboralski/lattice graph types, so downstream tooling that
// already consumes lattice's format can ingest a CFGTrace graph without
// re-parsing its rendered DOT document.
package latticeexport

import (
	"fmt"
	"sort"

	"github.com/zboralski/lattice"

	"github.com/hoenirvili/CFGTrace/internal/block"
	"github.com/hoenirvili/CFGTrace/internal/cfg"
	"github.com/hoenirvili/CFGTrace/internal/instr"
)

// FuncName is used as the single lattice.FuncCFG name for a whole CFGTrace
// graph: the core has no notion of function boundaries, so the entire
// accumulated graph becomes one lattice function keyed by its first entry.
func FuncName(g *cfg.Graph) string {
	return fmt.Sprintf("cfgtrace_0x%x", g.FirstEntry)
}

// Convert maps g's nodes into a lattice.FuncCFG. Node entries are ordered
// ascending and assigned sequential block IDs so Successor.BlockID can
// reference them without carrying raw addresses into the lattice graph.
func Convert(g *cfg.Graph) *lattice.FuncCFG {
	keys := make([]uint64, 0, len(g.Nodes))
	for k := range g.Nodes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	idFor := make(map[uint64]int, len(keys))
	for i, k := range keys {
		idFor[k] = i
	}

	lcfg := &lattice.FuncCFG{Name: FuncName(g)}
	for _, k := range keys {
		n := g.Nodes[k]
		lcfg.Blocks = append(lcfg.Blocks, convertNode(n, idFor))
	}
	return lcfg
}

// ConvertGraph wraps Convert's result in a lattice.CFGGraph for callers
// that want the multi-function container type even though CFGTrace only
// ever produces one function's worth of blocks per graph.
func ConvertGraph(g *cfg.Graph) *lattice.CFGGraph {
	return &lattice.CFGGraph{Funcs: []*lattice.FuncCFG{Convert(g)}}
}

func convertNode(n *block.Node, idFor map[uint64]int) *lattice.BasicBlock {
	lb := &lattice.BasicBlock{
		ID:    idFor[n.Entry],
		Start: 0,
		End:   len(n.Body),
		Term:  n.TrueSucc == 0 && n.FalseSucc == 0,
	}

	if n.TrueSucc != 0 {
		if id, ok := idFor[n.TrueSucc]; ok {
			lb.Succs = append(lb.Succs, lattice.Successor{BlockID: id, Cond: "true"})
		}
	}
	if n.FalseSucc != 0 {
		if id, ok := idFor[n.FalseSucc]; ok {
			lb.Succs = append(lb.Succs, lattice.Successor{BlockID: id, Cond: "false"})
		}
	}

	for offset, ins := range n.Body {
		if ins.Kind == instr.KindCall {
			lb.Calls = append(lb.Calls, lattice.CallSite{
				Offset: offset,
				Callee: fmt.Sprintf("0x%x", ins.Target),
			})
		}
	}

	return lb
}
