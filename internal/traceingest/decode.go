// Package traceingest turns raw ARM64 machine code into instr.Instruction
// records, the way a real disassembly front-end would feed the core. The
// core itself never disassembles; this package exists only for the CLI's
// offline replay tool, which accepts a raw .bin trace as an alternative to
// a pre-decoded JSONL file.
package traceingest

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/arch/arm64/arm64asm"

	"github.com/hoenirvili/CFGTrace/internal/instr"
)

// DecodeAll decodes a flat little-endian stream of 4-byte ARM64
// instructions starting at baseAddr into instr.Instruction records.
func DecodeAll(data []byte, baseAddr uint64) ([]instr.Instruction, error) {
	n := len(data) / 4
	out := make([]instr.Instruction, 0, n)
	for i := 0; i < n; i++ {
		off := i * 4
		raw := binary.LittleEndian.Uint32(data[off : off+4])
		addr := baseAddr + uint64(off)

		ins, err := decodeOne(raw, addr)
		if err != nil {
			return out, fmt.Errorf("traceingest: instruction at 0x%x: %w", addr, err)
		}
		out = append(out, ins)
	}
	return out, nil
}

func decodeOne(raw uint32, addr uint64) (instr.Instruction, error) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, raw)

	text := fmt.Sprintf(".word 0x%08x", raw)
	if decoded, err := arm64asm.Decode(buf); err == nil {
		text = decoded.String()
	}

	kind, target := decodeKind(raw, addr)
	return instr.Instruction{
		Address: addr,
		Text:    text,
		Kind:    kind,
		Length:  4,
		Target:  target,
	}, nil
}

// decodeKind classifies raw ARM64 encodings the way an instrumentation
// front-end must in order to hand the core correctly-tagged branch
// records: BL is a call, RET is a return, B is unconditional, and the
// conditional-branch family (B.cond, CBZ, CBNZ, TBZ, TBNZ) is folded into
// conditional_jump. Everything else is Kind_none.
func decodeKind(raw uint32, pc uint64) (instr.Kind, uint64) {
	// RET: 1101011001011111000000 Rn 00000
	if raw&0xFFFFFC1F == 0xD65F0000 {
		return instr.KindReturn, 0
	}

	// BL: 100101 imm26
	if raw&0xFC000000 == 0x94000000 {
		imm26 := raw & 0x03FFFFFF
		return instr.KindCall, branchTarget(pc, imm26, 26)
	}

	// B: 000101 imm26
	if raw&0xFC000000 == 0x14000000 {
		imm26 := raw & 0x03FFFFFF
		return instr.KindUnconditionalJump, branchTarget(pc, imm26, 26)
	}

	// B.cond: 01010100 imm19 0 cond
	if raw&0xFF000010 == 0x54000000 {
		imm19 := (raw >> 5) & 0x7FFFF
		return instr.KindConditionalJump, branchTarget(pc, imm19, 19)
	}

	// CBZ/CBNZ: sf 011010 op imm19 Rt
	if raw&0x7E000000 == 0x34000000 {
		imm19 := (raw >> 5) & 0x7FFFF
		return instr.KindConditionalJump, branchTarget(pc, imm19, 19)
	}

	// TBZ/TBNZ: b5 011011 op b40 imm14 Rt
	if raw&0x7E000000 == 0x36000000 {
		imm14 := (raw >> 5) & 0x3FFF
		return instr.KindConditionalJump, branchTarget(pc, imm14, 14)
	}

	return instr.KindNone, 0
}

func branchTarget(pc uint64, imm uint32, bits int) uint64 {
	sign := uint32(1) << (bits - 1)
	mask := sign - 1
	var offset int64
	if imm&sign != 0 {
		offset = int64(int32(imm | ^mask))
	} else {
		offset = int64(imm & mask)
	}
	return uint64(int64(pc) + offset*4)
}
