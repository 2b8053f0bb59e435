//go:build amd64

package hook

// insn describes one decoded instruction: its byte length and whether it can
// be copied to a different address unchanged. Anything pc-relative (rel8 and
// rel32 branches, RIP-relative addressing) is not relocatable, and an opcode
// the decoder does not know is reported as length 0.
type insn struct {
	length      int
	relocatable bool
}

// decode sizes the instruction at the start of b. The table covers the
// instruction set found in compiler-generated function prologues; an unknown
// opcode yields length 0 and the caller must refuse the patch.
func decode(b []byte) insn {
	i := 0
	operandSize16 := false

	// Legacy and REX prefixes.
	rexW := false
prefixes:
	for i < len(b) {
		switch b[i] {
		case 0x66:
			operandSize16 = true
			i++
		case 0x67, 0xF2, 0xF3, 0x2E, 0x36, 0x3E, 0x26, 0x64, 0x65:
			i++
		default:
			if b[i]&0xF0 == 0x40 {
				rexW = b[i]&0x08 != 0
				i++
				continue
			}
			break prefixes
		}
	}
	if i >= len(b) {
		return insn{}
	}

	op := b[i]
	i++

	switch {
	// ALU r/rm and rm/r forms, test, xchg, mov, lea, movsxd.
	case op <= 0x3B && op&0x04 == 0,
		op == 0x63, op == 0x84, op == 0x85, op == 0x86, op == 0x87,
		op >= 0x88 && op <= 0x8B, op == 0x8D:
		return modrm(b, i, 0)

	// ALU with immediate.
	case op == 0x80, op == 0x83:
		return modrm(b, i, 1)
	case op == 0x81:
		if operandSize16 {
			return modrm(b, i, 2)
		}
		return modrm(b, i, 4)

	// mov rm, imm.
	case op == 0xC6:
		return modrm(b, i, 1)
	case op == 0xC7:
		if operandSize16 {
			return modrm(b, i, 2)
		}
		return modrm(b, i, 4)

	// push/pop r64, single-byte.
	case op >= 0x50 && op <= 0x5F, op == 0x90, op == 0xC3, op == 0xCC:
		return insn{length: i, relocatable: true}

	// mov r, imm.
	case op >= 0xB0 && op <= 0xB7:
		return insn{length: i + 1, relocatable: true}
	case op >= 0xB8 && op <= 0xBF:
		switch {
		case rexW:
			return insn{length: i + 8, relocatable: true}
		case operandSize16:
			return insn{length: i + 2, relocatable: true}
		default:
			return insn{length: i + 4, relocatable: true}
		}

	// push imm.
	case op == 0x68:
		return insn{length: i + 4, relocatable: true}
	case op == 0x6A:
		return insn{length: i + 1, relocatable: true}

	// test al/eax, imm.
	case op == 0xA8:
		return insn{length: i + 1, relocatable: true}
	case op == 0xA9:
		return insn{length: i + 4, relocatable: true}

	// pc-relative control flow: sized, never relocatable.
	case op == 0xE8, op == 0xE9:
		return insn{length: i + 4}
	case op == 0xEB, op >= 0x70 && op <= 0x7F:
		return insn{length: i + 1}

	// ff group: inc/dec/call/jmp/push rm. Indirect forms relocate unless the
	// operand itself is RIP-relative, which modrm detects.
	case op == 0xFF:
		return modrm(b, i, 0)

	case op == 0x0F:
		if i >= len(b) {
			return insn{}
		}
		op2 := b[i]
		i++
		switch {
		case op2 >= 0x80 && op2 <= 0x8F: // jcc rel32
			return insn{length: i + 4}
		case op2 == 0x1F, // multi-byte nop
			op2 == 0x10, op2 == 0x11, op2 == 0x28, op2 == 0x29, // SSE moves
			op2 == 0xAF,                                        // imul
			op2 >= 0xB6 && op2 <= 0xB7, op2 >= 0xBE && op2 <= 0xBF: // movzx/movsx
			return modrm(b, i, 0)
		}
		return insn{}
	}

	return insn{}
}

// modrm finishes decoding an instruction whose next byte is ModRM, adding SIB,
// displacement and imm trailing bytes. RIP-relative addressing (mod 00,
// rm 101) sizes correctly but is reported as non-relocatable.
func modrm(b []byte, i, imm int) insn {
	if i >= len(b) {
		return insn{}
	}
	m := b[i]
	i++
	mod := m >> 6
	rm := m & 0x07

	ripRelative := false
	switch mod {
	case 0:
		if rm == 5 {
			ripRelative = true
			i += 4
		} else if rm == 4 {
			if i >= len(b) {
				return insn{}
			}
			if b[i]&0x07 == 5 { // SIB with no base
				i += 5
			} else {
				i++
			}
		}
	case 1:
		if rm == 4 {
			i++
		}
		i++
	case 2:
		if rm == 4 {
			i++
		}
		i += 4
	}

	i += imm
	return insn{length: i, relocatable: !ripRelative}
}
