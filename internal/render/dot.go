package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hoenirvili/CFGTrace/internal/block"
	"github.com/hoenirvili/CFGTrace/internal/cfg"
)

// preamble is the fixed declaration of default node styling every
// rendered document opens with.
const preamble = `digraph control_flow_graph {
	node [
		shape = box
		color = black
		arrowhead = diamond
		style = filled
		fontname = "Source Code Pro"
		arrowtail = normal
	]
`

// Render produces a deterministic Graphviz DOT document for g. Pass 1
// snapshots the graph's maximum visit count onto every node (for pure
// per-node color selection); pass 2 emits node definitions in ascending
// key order, then relation (edge) lines in the same order, so that two
// structurally equal graphs always render byte-identical documents
// (property P-R1).
func Render(g *cfg.Graph) string {
	max := g.MaxVisits()
	keys := sortedKeys(g)
	for _, k := range keys {
		g.Nodes[k].MaxVisitsInGraph = max
	}

	var b strings.Builder
	b.WriteString(preamble)
	for _, k := range keys {
		b.WriteString(definition(g.Nodes[k]))
	}
	for _, k := range keys {
		b.WriteString(relations(g.Nodes[k]))
	}
	b.WriteString("\n}\n")
	return b.String()
}

func sortedKeys(g *cfg.Graph) []uint64 {
	keys := make([]uint64, 0, len(g.Nodes))
	for k := range g.Nodes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func nodeName(entry uint64) string {
	return fmt.Sprintf("0x%08X", entry)
}

func definition(n *block.Node) string {
	var label strings.Builder
	fmt.Fprintf(&label, "%s\\l", nodeName(n.Entry))
	for _, ins := range n.Body {
		fmt.Fprintf(&label, "%s\\l", escapeLabel(ins.Text))
	}

	return fmt.Sprintf("\t\"%s\" [\n\t\tlabel = \"%s\"\n\t\t%s\n\t]\n",
		nodeName(n.Entry), label.String(), colorAttr(n))
}

func relations(n *block.Node) string {
	var b strings.Builder
	name := nodeName(n.Entry)
	if n.TrueSucc != 0 {
		fmt.Fprintf(&b, "\t\"%s\" -> \"%s\" [color=green penwidth=2.0]\n", name, nodeName(n.TrueSucc))
	}
	if n.FalseSucc != 0 {
		fmt.Fprintf(&b, "\t\"%s\" -> \"%s\" [color=red penwidth=2.0]\n", name, nodeName(n.FalseSucc))
	}
	return b.String()
}

// colorAttr implements the coloring rule: terminal nodes (no outgoing
// edges, non-empty body) render plum1; everything else picks a blues9
// palette index from relative visit frequency.
func colorAttr(n *block.Node) string {
	terminal := n.TrueSucc == 0 && n.FalseSucc == 0 && len(n.Body) > 0
	if terminal {
		return `color = "plum1"`
	}

	idx, white := pickColor(n.MaxVisitsInGraph, uint64(n.Visits))
	s := fmt.Sprintf("colorscheme = blues9\n\t\tcolor = %d", idx)
	if white {
		s += "\n\t\tfontcolor = white"
	}
	return s
}

// escapeLabel escapes a disassembly line for safe embedding in a quoted
// DOT label.
func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
