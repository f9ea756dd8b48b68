package cfg

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/hoenirvili/CFGTrace/internal/block"
)

// MemSize returns the exact number of bytes Serialize will write for g:
// first_entry, node_count, then each node's key and wire form.
func (g *Graph) MemSize() uint64 {
	size := uint64(8 + 8) // first_entry, node_count
	for _, n := range g.Nodes {
		size += 8 + n.MemSize() // key + node payload
	}
	return size
}

// Fits reports whether g's wire form fits within a window of the given
// capacity, per the shared-memory CFG window budget.
func (g *Graph) Fits(capacity uint64) bool {
	return g.MemSize() <= capacity
}

// sortedKeys returns the graph's node addresses in ascending order, for
// deterministic, reproducible serialization.
func (g *Graph) sortedKeys() []uint64 {
	keys := make([]uint64, 0, len(g.Nodes))
	for k := range g.Nodes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Serialize writes g's wire form into buf, which must be at least
// MemSize() bytes — a smaller buffer is a fatal precondition violation
// reported as ErrBufferTooSmall, never a partial write.
func (g *Graph) Serialize(buf []byte) (int, error) {
	need := g.MemSize()
	if uint64(len(buf)) < need {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, need, len(buf))
	}

	off := 0
	binary.LittleEndian.PutUint64(buf[off:], g.FirstEntry)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(len(g.Nodes)))
	off += 8

	for _, key := range g.sortedKeys() {
		binary.LittleEndian.PutUint64(buf[off:], key)
		off += 8
		n := g.Nodes[key]
		m, err := n.Serialize(buf[off:])
		if err != nil {
			return 0, fmt.Errorf("cfg: serialize node 0x%x: %w", key, err)
		}
		off += m
	}

	return off, nil
}

// Deserialize reads a graph's wire form from buf and returns the decoded
// graph and the number of bytes consumed. A short read or an impossible
// node_count is reported as ErrCorruptBuffer.
func Deserialize(buf []byte) (*Graph, int, error) {
	const fixedHead = 8 + 8
	if len(buf) < fixedHead {
		return nil, 0, fmt.Errorf("%w: need at least %d bytes, have %d", ErrCorruptBuffer, fixedHead, len(buf))
	}

	g := NewGraph()
	off := 0
	g.FirstEntry = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	nodeCount := binary.LittleEndian.Uint64(buf[off:])
	off += 8

	// Each node's wire form is at least 8 (key) + its own minimum of
	// 8+8+8 (entry, iteration, body_count) + 1+8+8+8+4 (tail) bytes.
	const minNodeSize = 8 + (8 + 8 + 8) + (1 + 8 + 8 + 8 + 4)
	if nodeCount > uint64(len(buf)-off)/minNodeSize {
		return nil, 0, fmt.Errorf("%w: node_count %d impossible for remaining %d bytes", ErrCorruptBuffer, nodeCount, len(buf)-off)
	}

	for i := uint64(0); i < nodeCount; i++ {
		if len(buf)-off < 8 {
			return nil, 0, fmt.Errorf("%w: truncated before node %d key", ErrCorruptBuffer, i)
		}
		key := binary.LittleEndian.Uint64(buf[off:])
		off += 8

		n, m, err := block.Deserialize(buf[off:])
		if err != nil {
			return nil, 0, fmt.Errorf("%w: node 0x%x: %v", ErrCorruptBuffer, key, err)
		}
		off += m
		g.Nodes[key] = n
	}

	return g, off, nil
}
