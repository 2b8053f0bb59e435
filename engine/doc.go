// Package engine resolves and drives the embedded Lua engine's stack ABI.
//
// # Symbol Table
//
// Lib is an immutable table of typed Go functions, one per required ABI entry
// point. It is populated exactly once through Resolve, which binds every
// symbol from a Library backend or fails; a partial table is never
// constructed. Two backends are provided:
//
//	NativeLibrary  - the engine as a shared library already loaded into the
//	                 host process, bound through dlopen/dlsym (purego)
//	WasmLibrary    - the engine compiled to WebAssembly, bound through a
//	                 wazero module's exports and linear memory
//
// # Stack Frames
//
// Every routine that pushes intermediate values onto the operand stack must
// leave the stack at the depth the caller observed. Frame records the entry
// depth and truncates back to it on every exit path:
//
//	f := lib.Begin(l)
//	defer f.Restore()
//
// # Thread Safety
//
// Lib is constructed before any concurrent use and read-only afterwards; it
// may be shared freely. The interpreter itself is single-threaded from this
// package's perspective: all calls happen on the engine's execution thread,
// bounded by the host's own call.
package engine
