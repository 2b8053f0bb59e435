//go:build windows

package hook

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// allocExec commits a fresh executable region holding body and returns its
// address.
func allocExec(body []byte) (uintptr, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(len(body)),
		windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return 0, err
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(body)), body)

	var old uint32
	if err := windows.VirtualProtect(addr, uintptr(len(body)), windows.PAGE_EXECUTE_READ, &old); err != nil {
		_ = windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
		return 0, err
	}
	return addr, nil
}

// releaseExec frees a region previously returned by allocExec.
func releaseExec(addr uintptr, _ int) error {
	return windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
}

// writeCode overwrites len(code) bytes at addr, toggling page protection
// around the store and flushing the instruction cache.
func writeCode(addr uintptr, code []byte) error {
	size := uintptr(len(code))

	var old uint32
	if err := windows.VirtualProtect(addr, size, windows.PAGE_EXECUTE_READWRITE, &old); err != nil {
		return err
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(code)), code)
	if err := windows.VirtualProtect(addr, size, old, &old); err != nil {
		return err
	}

	proc := windows.CurrentProcess()
	return windows.FlushInstructionCache(proc, addr, size)
}
