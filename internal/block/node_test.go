package block

import (
	"testing"

	"github.com/hoenirvili/CFGTrace/internal/instr"
)

func nonBranch(addr uint64, length uint32) instr.Instruction {
	return instr.Instruction{Address: addr, Text: "nop", Length: length, Kind: instr.KindNone}
}

func TestAppend_StraightLine(t *testing.T) {
	n := New(0x1000, 0)
	n.Append(nonBranch(0x1000, 2), 0)
	n.Append(nonBranch(0x1002, 3), 0)
	n.Append(nonBranch(0x1005, 1), 0)

	if len(n.Body) != 3 {
		t.Fatalf("body = %d, want 3", len(n.Body))
	}
	if n.Closed {
		t.Error("should not be closed")
	}
	if n.Visits != 1 {
		t.Errorf("visits = %d, want 1", n.Visits)
	}
}

func TestAppendBranch_CallThenReturn(t *testing.T) {
	n := New(0x1000, 0)
	call := instr.Instruction{Address: 0x1000, Text: "call 0x2000", Length: 5, Kind: instr.KindCall, Target: 0x2000}
	n.AppendBranch(call, 0)

	if !n.Closed {
		t.Fatal("expected closed")
	}
	if n.TrueSucc != 0x2000 || n.FalseSucc != 0x1005 {
		t.Errorf("succs = (0x%x, 0x%x), want (0x2000, 0x1005)", n.TrueSucc, n.FalseSucc)
	}
}

func TestAppendBranch_Return(t *testing.T) {
	n := New(0x2000, 0)
	n.Append(nonBranch(0x2000, 2), 0)
	ret := instr.Instruction{Address: 0x2002, Text: "ret", Length: 1, Kind: instr.KindReturn}
	n.AppendBranch(ret, 0)

	if n.TrueSucc != 0 || n.FalseSucc != 0 {
		t.Errorf("return should have no successors, got (0x%x, 0x%x)", n.TrueSucc, n.FalseSucc)
	}
}

func TestLoop_ReEntrySameIteration(t *testing.T) {
	n := New(0x3000, 0)
	cmp := nonBranch(0x3000, 4)
	n.Append(cmp, 0)
	jne := instr.Instruction{Address: 0x3004, Text: "jne 0x3000", Length: 2, Kind: instr.KindConditionalJump, Target: 0x3000}
	n.AppendBranch(jne, 0)

	if n.TrueSucc != 0x3000 || n.FalseSucc != 0x3006 {
		t.Fatalf("succs = (0x%x, 0x%x), want (0x3000, 0x3006)", n.TrueSucc, n.FalseSucc)
	}
	if n.Visits != 1 {
		t.Fatalf("visits = %d, want 1 before re-entry", n.Visits)
	}

	// Second pass through the loop, same iteration.
	n.Append(cmp, 0)
	n.AppendBranch(jne, 0)

	if n.Visits != 2 {
		t.Errorf("visits = %d, want 2 after re-entry", n.Visits)
	}
	if len(n.Body) != 2 {
		t.Errorf("body should not grow on re-entry, got %d", len(n.Body))
	}
}

func TestAppendBranch_AlreadyClosedIsNoop(t *testing.T) {
	n := New(0x4000, 0)
	ret := instr.Instruction{Address: 0x4000, Text: "ret", Length: 1, Kind: instr.KindReturn}
	n.AppendBranch(ret, 0)

	other := instr.Instruction{Address: 0x5000, Text: "ret", Length: 1, Kind: instr.KindReturn}
	n.AppendBranch(other, 0)

	if len(n.Body) != 1 || n.Body[0].Address != 0x4000 {
		t.Errorf("closed node mutated by second AppendBranch: %+v", n.Body)
	}
}

func TestContains(t *testing.T) {
	n := New(0x1000, 0)
	n.Append(nonBranch(0x1000, 2), 0)
	n.Append(nonBranch(0x1002, 2), 0)

	if !n.Contains(0x1002) {
		t.Error("expected contains 0x1002")
	}
	if n.Contains(0x9999) {
		t.Error("unexpected contains 0x9999")
	}
}

func TestMemSizeMatchesSerialize(t *testing.T) {
	n := New(0x1000, 3)
	n.Append(nonBranch(0x1000, 2), 3)
	call := instr.Instruction{Address: 0x1002, Text: "call 0x2000", Length: 5, Kind: instr.KindCall, Target: 0x2000}
	n.AppendBranch(call, 3)
	n.MaxVisitsInGraph = 42

	want := n.MemSize()
	buf := make([]byte, want)
	got, err := n.Serialize(buf)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if uint64(got) != want {
		t.Fatalf("Serialize wrote %d bytes, MemSize() = %d", got, want)
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	n := New(0x1000, 3)
	n.Append(nonBranch(0x1000, 2), 3)
	call := instr.Instruction{Address: 0x1002, Text: "call 0x2000", Length: 5, Kind: instr.KindCall, Target: 0x2000}
	n.AppendBranch(call, 3)
	n.MaxVisitsInGraph = 42
	n.Visits = 7

	buf := make([]byte, n.MemSize())
	if _, err := n.Serialize(buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	out, consumed, err := Deserialize(buf)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if uint64(consumed) != n.MemSize() {
		t.Errorf("consumed %d, want %d", consumed, n.MemSize())
	}
	if out.Entry != n.Entry || out.Iteration != n.Iteration || out.Closed != n.Closed ||
		out.TrueSucc != n.TrueSucc || out.FalseSucc != n.FalseSucc || out.Visits != n.Visits ||
		out.MaxVisitsInGraph != n.MaxVisitsInGraph || len(out.Body) != len(n.Body) {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, n)
	}
	for i := range n.Body {
		if out.Body[i] != n.Body[i] {
			t.Errorf("body[%d] mismatch: got %+v, want %+v", i, out.Body[i], n.Body[i])
		}
	}
}

func TestDeserializeTruncated(t *testing.T) {
	_, _, err := Deserialize([]byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected corrupt buffer error")
	}
}
