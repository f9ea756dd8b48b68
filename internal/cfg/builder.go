package cfg

import (
	"fmt"

	"github.com/hoenirvili/CFGTrace/internal/block"
	"github.com/hoenirvili/CFGTrace/internal/instr"
)

// Builder is the core state machine: it routes each incoming instruction
// into the correct node, opening and closing nodes on branch boundaries
// and resolving re-entry. Not safe for concurrent use — the host's
// callback discipline serializes all calls onto one thread.
type Builder struct {
	Graph     *Graph
	Iteration uint64
}

// NewBuilder starts a builder for the given iteration index, as supplied
// by the host on startup.
func NewBuilder(iteration uint64) *Builder {
	return &Builder{Graph: NewGraph(), Iteration: iteration}
}

// effectiveEntry resolves the cursor rule: the address the current
// instruction should be routed to.
func (b *Builder) effectiveEntry(addr uint64) uint64 {
	if b.Graph.OpenEntry == 0 && b.Graph.FirstEntry == 0 {
		b.Graph.OpenEntry = addr
		b.Graph.FirstEntry = addr
	} else if b.Graph.OpenEntry == 0 {
		b.Graph.OpenEntry = addr
	}
	return b.Graph.OpenEntry
}

// lookupOrCreate returns the existing node at entry, preserving its
// iteration, or creates a freshly opened one.
func (b *Builder) lookupOrCreate(entry uint64) *block.Node {
	if n, ok := b.Graph.Nodes[entry]; ok {
		return n
	}
	n := block.New(entry, b.Iteration)
	b.Graph.Nodes[entry] = n
	return n
}

// AppendInstruction routes a non-branch instruction into the current
// block. Returns ErrInvalidArgument if inst fails validation or is a
// branch.
func (b *Builder) AppendInstruction(inst instr.Instruction) error {
	if err := inst.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if inst.IsBranch() {
		return fmt.Errorf("%w: append_instruction given a branch at 0x%x", ErrInvalidArgument, inst.Address)
	}

	entry := b.effectiveEntry(inst.Address)
	node := b.lookupOrCreate(entry)
	node.Append(inst, b.Iteration)
	b.Graph.Nodes[entry] = node
	return nil
}

// AppendBranchInstruction routes a branch instruction into the current
// block, closes it, and materializes empty placeholder nodes for any new
// successor addresses so invariant I5 holds. Returns ErrInvalidArgument
// if inst fails validation or is not a branch.
func (b *Builder) AppendBranchInstruction(inst instr.Instruction) error {
	if err := inst.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if !inst.IsBranch() {
		return fmt.Errorf("%w: append_branch_instruction given a non-branch at 0x%x", ErrInvalidArgument, inst.Address)
	}

	entry := b.effectiveEntry(inst.Address)
	node := b.lookupOrCreate(entry)
	node.AppendBranch(inst, b.Iteration)
	b.Graph.Nodes[entry] = node

	for _, succ := range [2]uint64{node.TrueSucc, node.FalseSucc} {
		if succ == 0 {
			continue
		}
		if _, ok := b.Graph.Nodes[succ]; !ok {
			b.Graph.Nodes[succ] = block.New(succ, b.Iteration)
		}
	}

	if node.Closed {
		b.Graph.OpenEntry = 0
	}
	return nil
}

// NodeContainsAddress delegates to the underlying graph. Diagnostics only.
func (b *Builder) NodeContainsAddress(address uint64) bool {
	return b.Graph.NodeContainsAddress(address)
}
