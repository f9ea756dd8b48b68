package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoenirvili/CFGTrace/internal/instr"
)

func nonBranch(addr uint64, length uint32) instr.Instruction {
	return instr.Instruction{Address: addr, Text: "nop", Length: length, Kind: instr.KindNone}
}

func TestScenario1_StraightLineBlock(t *testing.T) {
	b := NewBuilder(0)
	require.NoError(t, b.AppendInstruction(nonBranch(0x1000, 2)))
	require.NoError(t, b.AppendInstruction(nonBranch(0x1002, 3)))
	require.NoError(t, b.AppendInstruction(nonBranch(0x1005, 1)))

	require.Len(t, b.Graph.Nodes, 1)
	n := b.Graph.Nodes[0x1000]
	require.NotNil(t, n, "missing node at 0x1000")

	assert.Len(t, n.Body, 3)
	assert.False(t, n.Closed)
	assert.Equal(t, uint32(1), n.Visits)
	assert.Zero(t, n.TrueSucc)
	assert.Zero(t, n.FalseSucc)
}

func TestScenario2_CallThenReturn(t *testing.T) {
	b := NewBuilder(0)
	call := instr.Instruction{Address: 0x1000, Text: "call 0x2000", Length: 5, Kind: instr.KindCall, Target: 0x2000}
	require.NoError(t, b.AppendBranchInstruction(call))
	require.NoError(t, b.AppendInstruction(instr.Instruction{Address: 0x2000, Text: "xor eax,eax", Length: 2, Kind: instr.KindNone}))
	ret := instr.Instruction{Address: 0x2002, Text: "ret", Length: 1, Kind: instr.KindReturn}
	require.NoError(t, b.AppendBranchInstruction(ret))

	require.Len(t, b.Graph.Nodes, 3)

	entry := b.Graph.Nodes[0x1000]
	assert.True(t, entry.Closed)
	assert.Equal(t, uint64(0x2000), entry.TrueSucc)
	assert.Equal(t, uint64(0x1005), entry.FalseSucc)

	callee := b.Graph.Nodes[0x2000]
	assert.True(t, callee.Closed)
	assert.Zero(t, callee.TrueSucc)
	assert.Zero(t, callee.FalseSucc)

	placeholder := b.Graph.Nodes[0x1005]
	require.NotNil(t, placeholder, "expected empty placeholder at 0x1005")
	assert.Empty(t, placeholder.Body)
}

func TestScenario3_Loop(t *testing.T) {
	b := NewBuilder(0)
	feed := func() {
		require.NoError(t, b.AppendInstruction(nonBranch(0x3000, 4)))
		jne := instr.Instruction{Address: 0x3004, Text: "jne 0x3000", Length: 2, Kind: instr.KindConditionalJump, Target: 0x3000}
		require.NoError(t, b.AppendBranchInstruction(jne))
	}
	feed()

	n := b.Graph.Nodes[0x3000]
	require.NotNil(t, n)
	assert.Equal(t, uint64(0x3000), n.TrueSucc)
	assert.Equal(t, uint64(0x3006), n.FalseSucc)
	assert.Equal(t, uint32(1), n.Visits)

	feed()
	assert.Equal(t, uint32(2), n.Visits, "visits after second pass")
}

func TestInvalidArgument_BranchToNonBranchAppend(t *testing.T) {
	b := NewBuilder(0)
	call := instr.Instruction{Address: 0x1000, Text: "call 0x2000", Length: 5, Kind: instr.KindCall, Target: 0x2000}
	assert.Error(t, b.AppendInstruction(call))
}

func TestInvalidArgument_NonBranchToBranchAppend(t *testing.T) {
	b := NewBuilder(0)
	assert.Error(t, b.AppendBranchInstruction(nonBranch(0x1000, 2)))
}

func TestInvalidArgument_InvalidInstruction(t *testing.T) {
	b := NewBuilder(0)
	assert.Error(t, b.AppendInstruction(instr.Instruction{Address: 0x1000, Text: "", Length: 2}))
}

// P-G1: after any sequence of appends, every non-zero successor is a key.
func TestPropertyG1_SuccessorsAreKeys(t *testing.T) {
	b := NewBuilder(0)
	beq := instr.Instruction{Address: 0x1000, Text: "beq 0x1010", Length: 4, Kind: instr.KindConditionalJump, Target: 0x1010}
	require.NoError(t, b.AppendBranchInstruction(beq))

	for _, n := range b.Graph.Nodes {
		for _, s := range [2]uint64{n.TrueSucc, n.FalseSucc} {
			if s == 0 {
				continue
			}
			_, ok := b.Graph.Nodes[s]
			assert.True(t, ok, "successor 0x%x not present as a node key", s)
		}
	}
}
