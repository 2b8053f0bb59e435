//go:build arm64

package hook

// jumpTo encodes an absolute jump to addr:
//
//	ldr x16, #8
//	br  x16
//	.quad addr
//
// x16 is the platform scratch register reserved for exactly this kind of
// veneer.
func jumpTo(addr uintptr) []byte {
	return []byte{
		0x50, 0x00, 0x00, 0x58, // ldr x16, #8
		0x00, 0x02, 0x1F, 0xD6, // br x16
		byte(addr), byte(addr >> 8), byte(addr >> 16), byte(addr >> 24),
		byte(addr >> 32), byte(addr >> 40), byte(addr >> 48), byte(addr >> 56),
	}
}
