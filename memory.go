package luainject

// Memory represents the linear memory of an engine build that runs inside a
// WebAssembly guest rather than as a native library. Symbol wrappers use it to
// exchange strings and buffers with the guest.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
}

// Allocator allocates guest memory for values passed by pointer, such as chunk
// names and source buffers handed to the compile entry point.
type Allocator interface {
	Alloc(size uint32) (uint32, error)
	Free(ptr uint32)
}
