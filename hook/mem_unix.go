//go:build darwin || freebsd || linux

package hook

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// allocExec maps a fresh executable page holding body and returns its address.
func allocExec(body []byte) (uintptr, error) {
	page, err := unix.Mmap(-1, 0, pageCeil(len(body)),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, err
	}
	copy(page, body)
	if err := unix.Mprotect(page, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(page)
		return 0, err
	}
	return uintptr(unsafe.Pointer(&page[0])), nil
}

// releaseExec unmaps a region previously returned by allocExec.
func releaseExec(addr uintptr, size int) error {
	return unix.Munmap(unsafe.Slice((*byte)(unsafe.Pointer(addr)), pageCeil(size)))
}

// writeCode overwrites len(code) bytes at addr, toggling page protection
// around the store. The mprotect transitions also keep the instruction cache
// coherent with the rewritten bytes.
func writeCode(addr uintptr, code []byte) error {
	span := pageSpan(addr, len(code))
	if err := unix.Mprotect(span, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC); err != nil {
		return err
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(code)), code)
	return unix.Mprotect(span, unix.PROT_READ|unix.PROT_EXEC)
}

// pageSpan returns a byte view of the whole pages covering [addr, addr+n).
func pageSpan(addr uintptr, n int) []byte {
	pageSize := uintptr(unix.Getpagesize())
	start := addr &^ (pageSize - 1)
	end := (addr + uintptr(n) + pageSize - 1) &^ (pageSize - 1)
	return unsafe.Slice((*byte)(unsafe.Pointer(start)), end-start)
}

func pageCeil(n int) int {
	pageSize := unix.Getpagesize()
	return (n + pageSize - 1) &^ (pageSize - 1)
}
