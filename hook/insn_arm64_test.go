package hook

import (
	"encoding/binary"
	"testing"
)

func word(w uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, w)
	return b
}

func TestDecode(t *testing.T) {
	cases := []struct {
		name string
		w    uint32
		want insn
	}{
		{"nop", 0xD503201F, insn{4, true}},
		{"ret", 0xD65F03C0, insn{4, true}},
		{"movz w0", 0x52800040, insn{4, true}},
		{"stp x29 x30", 0xA9BF7BFD, insn{4, true}},
		{"add sp imm", 0x910043FF, insn{4, true}},
		{"ldr from register base", 0xF9400000, insn{4, true}},

		// Anything that encodes a pc-relative destination cannot be moved.
		{"b", 0x14000010, insn{4, false}},
		{"bl", 0x94000010, insn{4, false}},
		{"b.eq", 0x54000100, insn{4, false}},
		{"cbz", 0x34000060, insn{4, false}},
		{"cbnz", 0x35000060, insn{4, false}},
		{"tbz", 0x36000060, insn{4, false}},
		{"ldr literal", 0x18000080, insn{4, false}},
		{"adr", 0x10000080, insn{4, false}},
		{"adrp", 0x90000080, insn{4, false}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := decode(word(tc.w))
			if got != tc.want {
				t.Fatalf("decode(%08X) = %+v, want %+v", tc.w, got, tc.want)
			}
		})
	}
}

func TestDecodeShortBuffer(t *testing.T) {
	if got := decode([]byte{0x1F, 0x20}); got.length != 0 {
		t.Fatalf("decode of truncated word = %+v, want zero", got)
	}
}
