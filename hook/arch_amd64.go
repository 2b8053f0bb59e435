//go:build amd64

package hook

// jumpTo encodes an absolute jump to addr:
//
//	movabs rax, addr
//	jmp    rax
//
// rax is caller-saved in both System V and Windows conventions, so clobbering
// it at a function entry is safe.
func jumpTo(addr uintptr) []byte {
	return []byte{
		0x48, 0xB8, // movabs rax, imm64
		byte(addr), byte(addr >> 8), byte(addr >> 16), byte(addr >> 24),
		byte(addr >> 32), byte(addr >> 40), byte(addr >> 48), byte(addr >> 56),
		0xFF, 0xE0, // jmp rax
	}
}
