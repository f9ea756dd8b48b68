// Package block implements the basic-block node of a control-flow graph:
// an ordered instruction body with entry/successor addresses and a
// cross-iteration visit count.
package block

import (
	"encoding/binary"
	"fmt"

	"github.com/hoenirvili/CFGTrace/internal/instr"
)

// Node is one basic block: an ordered list of instructions sharing a
// single entry address, closed by at most one trailing branch.
type Node struct {
	// Entry is the address of the first instruction; also the key under
	// which the node is stored in a Graph.
	Entry uint64
	// Iteration is the iteration index at which this node was first opened.
	Iteration uint64
	// Body is the block's instructions in issue order.
	Body []instr.Instruction
	// Closed is true once a branch instruction has been appended.
	Closed bool
	// TrueSucc/FalseSucc are successor entry addresses; 0 means no edge.
	TrueSucc  uint64
	FalseSucc uint64
	// Visits counts how many times this block's entry has been reached.
	Visits uint32
	// MaxVisitsInGraph is a render-time snapshot of the maximum Visits
	// across all nodes in the graph; mutated in bulk just before rendering.
	MaxVisitsInGraph uint64
}

// New creates an empty node opened at entry during iteration it, with the
// single initial visit every freshly-opened node carries.
func New(entry, it uint64) *Node {
	return &Node{Entry: entry, Iteration: it, Visits: 1}
}

// Contains reports whether address appears in the node's body.
func (n *Node) Contains(address uint64) bool {
	for _, ins := range n.Body {
		if ins.Address == address {
			return true
		}
	}
	return false
}

// Append adds a non-branch instruction to the block's body, or — if the
// block is already closed and inst re-enters it within the same
// iteration — accounts for the re-entry without duplicating the
// instruction. The visit count only increases when the re-entered
// address is the block's first instruction; a mid-block re-entry
// (possible only via an indirect jump the host didn't resolve to a new
// block) is silently ignored, per spec.
func (n *Node) Append(inst instr.Instruction, currentIteration uint64) {
	if n.Closed {
		if n.Contains(inst.Address) && currentIteration == n.Iteration {
			if len(n.Body) > 0 && inst.Address == n.Body[0].Address {
				n.Visits++
			}
		}
		return
	}
	n.Body = append(n.Body, inst)
}

// AppendBranch closes the block with a branch instruction, recording its
// successors (both zero for a return). A no-op if already closed.
func (n *Node) AppendBranch(inst instr.Instruction, currentIteration uint64) {
	if n.Closed {
		return
	}
	n.Append(inst, currentIteration)
	if inst.Kind != instr.KindReturn {
		n.TrueSucc = inst.TrueBranch()
		n.FalseSucc = inst.FalseBranch()
	}
	n.Closed = true
}

// MemSize returns the exact number of bytes Serialize will write.
func (n *Node) MemSize() uint64 {
	var size uint64 = 8 + 8 + 8 // entry, iteration, body_count
	for _, ins := range n.Body {
		size += ins.MemSize()
	}
	size += 1 + 8 + 8 + 8 + 4 // closed, max_visits_in_graph, true_succ, false_succ, visits
	return size
}

// Serialize writes the node's wire form (entry through visits, per the
// format in the codec package's graph layout) into buf and returns the
// number of bytes consumed.
func (n *Node) Serialize(buf []byte) (int, error) {
	need := int(n.MemSize())
	if len(buf) < need {
		return 0, fmt.Errorf("block: buffer too small: need %d, have %d", need, len(buf))
	}

	off := 0
	binary.LittleEndian.PutUint64(buf[off:], n.Entry)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], n.Iteration)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(len(n.Body)))
	off += 8
	for _, ins := range n.Body {
		m, err := ins.Serialize(buf[off:])
		if err != nil {
			return 0, fmt.Errorf("block: serialize instruction: %w", err)
		}
		off += m
	}
	if n.Closed {
		buf[off] = 0x01
	} else {
		buf[off] = 0x00
	}
	off++
	binary.LittleEndian.PutUint64(buf[off:], n.MaxVisitsInGraph)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], n.TrueSucc)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], n.FalseSucc)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], n.Visits)
	off += 4

	return off, nil
}

// ErrCorruptBuffer is returned by Deserialize when the buffer is too
// short or declares an impossible count.
var ErrCorruptBuffer = fmt.Errorf("block: corrupt buffer")

// Deserialize reads one node's wire form from buf, returning the node and
// the number of bytes consumed.
func Deserialize(buf []byte) (*Node, int, error) {
	const fixedHead = 8 + 8 + 8
	if len(buf) < fixedHead {
		return nil, 0, fmt.Errorf("%w: need at least %d bytes, have %d", ErrCorruptBuffer, fixedHead, len(buf))
	}

	n := &Node{}
	off := 0
	n.Entry = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	n.Iteration = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	bodyCount := binary.LittleEndian.Uint64(buf[off:])
	off += 8

	// Each instruction's wire form is at least 40 bytes (its 24-byte fixed
	// header plus two zero-length strings, each an 8-byte length prefix);
	// reject impossible counts early.
	const minInstrSize = 8 + 4 + 4 + 8 + 8 + 8
	if bodyCount > uint64(len(buf)-off)/minInstrSize {
		return nil, 0, fmt.Errorf("%w: body_count %d impossible for remaining %d bytes", ErrCorruptBuffer, bodyCount, len(buf)-off)
	}

	// An empty body stays nil, as it is on a node that was never appended to.
	if bodyCount > 0 {
		n.Body = make([]instr.Instruction, 0, bodyCount)
	}
	for i := uint64(0); i < bodyCount; i++ {
		ins, m, err := instr.Deserialize(buf[off:])
		if err != nil {
			return nil, 0, fmt.Errorf("%w: instruction %d: %v", ErrCorruptBuffer, i, err)
		}
		n.Body = append(n.Body, ins)
		off += m
	}

	const fixedTail = 1 + 8 + 8 + 8 + 4
	if len(buf)-off < fixedTail {
		return nil, 0, fmt.Errorf("%w: truncated tail, need %d have %d", ErrCorruptBuffer, fixedTail, len(buf)-off)
	}
	n.Closed = buf[off] == 0x01
	off++
	n.MaxVisitsInGraph = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	n.TrueSucc = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	n.FalseSucc = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	n.Visits = binary.LittleEndian.Uint32(buf[off:])
	off += 4

	return n, off, nil
}
