package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoenirvili/CFGTrace/internal/instr"
)

func buildFourNodeGraph(t *testing.T) *Graph {
	t.Helper()
	b := NewBuilder(1)
	call := instr.Instruction{Address: 0x1000, Text: "call 0x2000", Length: 5, Kind: instr.KindCall, Target: 0x2000}
	require.NoError(t, b.AppendBranchInstruction(call))
	require.NoError(t, b.AppendInstruction(instr.Instruction{Address: 0x2000, Text: "xor eax,eax", Length: 2}))
	ret := instr.Instruction{Address: 0x2002, Text: "ret", Length: 1, Kind: instr.KindReturn}
	require.NoError(t, b.AppendBranchInstruction(ret))
	require.NoError(t, b.AppendInstruction(nonBranch(0x1005, 3)))
	jmp := instr.Instruction{Address: 0x1008, Text: "jmp 0x3000", Length: 2, Kind: instr.KindUnconditionalJump, Target: 0x3000}
	require.NoError(t, b.AppendBranchInstruction(jmp))
	return b.Graph
}

// P-C1: serialize(G) writes exactly G.MemSize() bytes; deserialize(serialize(G)) = G.
func TestPropertyC1_RoundTrip(t *testing.T) {
	g := buildFourNodeGraph(t)
	require.Len(t, g.Nodes, 4)

	want := g.MemSize()
	buf := make([]byte, want)
	n, err := g.Serialize(buf)
	require.NoError(t, err)
	assert.Equal(t, want, uint64(n))

	out, consumed, err := Deserialize(buf)
	require.NoError(t, err)
	assert.Equal(t, want, uint64(consumed))

	assertGraphsEqual(t, g, out)
}

func TestSerializeBufferTooSmall(t *testing.T) {
	g := buildFourNodeGraph(t)
	_, err := g.Serialize(make([]byte, g.MemSize()-1))
	assert.ErrorIs(t, err, ErrBufferTooSmall)
}

func TestDeserializeCorruptBuffer(t *testing.T) {
	_, _, err := Deserialize([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCorruptBuffer)
}

func TestDeserializeImpossibleNodeCount(t *testing.T) {
	buf := make([]byte, 16)
	// first_entry = 0, node_count = huge.
	for i := 8; i < 16; i++ {
		buf[i] = 0xFF
	}
	_, _, err := Deserialize(buf)
	assert.ErrorIs(t, err, ErrCorruptBuffer)
}

func assertGraphsEqual(t *testing.T, a, b *Graph) {
	t.Helper()
	assert.Equal(t, a.FirstEntry, b.FirstEntry)
	require.Len(t, b.Nodes, len(a.Nodes))
	for key, an := range a.Nodes {
		bn, ok := b.Nodes[key]
		if !assert.True(t, ok, "missing node 0x%x", key) {
			continue
		}
		assert.Equal(t, an.Entry, bn.Entry, "node 0x%x Entry", key)
		assert.Equal(t, an.Iteration, bn.Iteration, "node 0x%x Iteration", key)
		assert.Equal(t, an.Closed, bn.Closed, "node 0x%x Closed", key)
		assert.Equal(t, an.TrueSucc, bn.TrueSucc, "node 0x%x TrueSucc", key)
		assert.Equal(t, an.FalseSucc, bn.FalseSucc, "node 0x%x FalseSucc", key)
		assert.Equal(t, an.Visits, bn.Visits, "node 0x%x Visits", key)
		assert.Equal(t, an.MaxVisitsInGraph, bn.MaxVisitsInGraph, "node 0x%x MaxVisitsInGraph", key)
		assert.Equal(t, an.Body, bn.Body, "node 0x%x Body", key)
	}
}
