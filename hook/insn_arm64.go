//go:build arm64

package hook

import "encoding/binary"

// insn describes one decoded instruction: its byte length and whether it can
// be copied to a different address unchanged. Instructions are fixed-width, so
// only pc-relative encodings make a prologue non-relocatable.
type insn struct {
	length      int
	relocatable bool
}

// decode classifies the instruction at the start of b. Pc-relative encodings
// (branches, conditional branches, literal loads, adr/adrp) must not be
// displaced into a trampoline.
func decode(b []byte) insn {
	if len(b) < 4 {
		return insn{}
	}
	w := binary.LittleEndian.Uint32(b)

	switch {
	case w&0x7C000000 == 0x14000000, // b / bl
		w&0xFF000010 == 0x54000000, // b.cond
		w&0x7E000000 == 0x34000000, // cbz / cbnz
		w&0x7E000000 == 0x36000000, // tbz / tbnz
		w&0x3B000000 == 0x18000000, // ldr (literal)
		w&0x1F000000 == 0x10000000: // adr / adrp
		return insn{length: 4}
	}
	return insn{length: 4, relocatable: true}
}
