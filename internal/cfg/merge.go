package cfg

import (
	"errors"
	"fmt"

	"github.com/hoenirvili/CFGTrace/internal/block"
	"github.com/hoenirvili/CFGTrace/internal/instr"
)

// Merge fuses other — a graph decoded from shared memory, representing
// accumulated prior iterations — into self, additively on visit counts
// and unionally on edges. self is mutated in place to hold the union.
//
// Merge is commutative and associative up to node identity: merging A
// into B and merging B into A yield the same final node set and per-node
// summed visit counts (property P-M1). It is not naively idempotent —
// merging the same non-empty other twice double-counts its visits, by
// design, since every persisted snapshot represents real observed
// executions.
//
// Conflicts are collected per node and returned as a joined error; self
// retains its own (current-iteration) view of any conflicting node.
func Merge(self, other *Graph) error {
	if self.FirstEntry == 0 {
		self.FirstEntry = other.FirstEntry
	}

	var errs []error
	for key, otherNode := range other.Nodes {
		selfNode, ok := self.Nodes[key]
		if !ok {
			self.Nodes[key] = otherNode
			continue
		}
		if err := fuse(selfNode, otherNode); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// fuse combines other's observation of a node into self's, in place.
func fuse(self, other *block.Node) error {
	var errs []error

	self.Visits = self.Visits + other.Visits

	if self.TrueSucc == 0 {
		self.TrueSucc = other.TrueSucc
	} else if other.TrueSucc != 0 && self.TrueSucc != other.TrueSucc {
		errs = append(errs, fmt.Errorf("%w: node 0x%x true_succ self=0x%x other=0x%x",
			ErrInconsistentEdges, self.Entry, self.TrueSucc, other.TrueSucc))
	}

	if self.FalseSucc == 0 {
		self.FalseSucc = other.FalseSucc
	} else if other.FalseSucc != 0 && self.FalseSucc != other.FalseSucc {
		errs = append(errs, fmt.Errorf("%w: node 0x%x false_succ self=0x%x other=0x%x",
			ErrInconsistentEdges, self.Entry, self.FalseSucc, other.FalseSucc))
	}

	if len(self.Body) == 0 {
		self.Body = other.Body
	} else if len(other.Body) != 0 && !bodiesMatch(self.Body, other.Body) {
		errs = append(errs, fmt.Errorf("%w: node 0x%x body mismatch (self %d instructions, other %d)",
			ErrInconsistentBlock, self.Entry, len(self.Body), len(other.Body)))
	}

	self.Closed = self.Closed || other.Closed
	if other.Iteration < self.Iteration {
		self.Iteration = other.Iteration
	}

	return errors.Join(errs...)
}

// bodiesMatch compares two instruction bodies tuple-wise by
// (address, length, kind), per the merger's equality rule.
func bodiesMatch(a, b []instr.Instruction) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Address != b[i].Address || a[i].Length != b[i].Length || a[i].Kind != b[i].Kind {
			return false
		}
	}
	return true
}
