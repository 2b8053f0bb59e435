package engine_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/tetratelabs/wazero"

	luainject "github.com/hexpatch/lua-injector"
	"github.com/hexpatch/lua-injector/engine"
)

// Hand-assembled wasm binaries. The backend only needs the export surface to
// be present; the function bodies are stubs.
var (
	// (module)
	wasmEmpty = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	// (module (memory (export "memory") 1))
	wasmMemoryOnly = []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x05, 0x03, 0x01, 0x00, 0x01,
		0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	}

	// (module
	//   (memory (export "memory") 1)
	//   (func (export "malloc") (param i32) (result i32) (i32.const 16))
	//   (func (export "free") (param i32) (result i32) (i32.const 0)))
	wasmAllocator = []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x06, 0x01, 0x60, 0x01, 0x7f, 0x01, 0x7f,
		0x03, 0x03, 0x02, 0x00, 0x00,
		0x05, 0x03, 0x01, 0x00, 0x01,
		0x07, 0x1a, 0x03,
		0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
		0x06, 'm', 'a', 'l', 'l', 'o', 'c', 0x00, 0x00,
		0x04, 'f', 'r', 'e', 'e', 0x00, 0x01,
		0x0a, 0x0b, 0x02,
		0x04, 0x00, 0x41, 0x10, 0x0b,
		0x04, 0x00, 0x41, 0x00, 0x0b,
	}
)

func instantiate(t *testing.T, bin []byte) (*engine.WasmLibrary, error) {
	t.Helper()
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() { r.Close(ctx) })

	mod, err := r.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("instantiate failed: %v", err)
	}
	return engine.NewWasmLibrary(ctx, mod)
}

func TestNewWasmLibraryRequiresMemory(t *testing.T) {
	_, err := instantiate(t, wasmEmpty)
	if err == nil {
		t.Fatal("expected a module without memory to be rejected")
	}
}

func TestNewWasmLibraryRequiresAllocator(t *testing.T) {
	_, err := instantiate(t, wasmMemoryOnly)
	if err == nil {
		t.Fatal("expected a module without malloc/free to be rejected")
	}
}

func TestWasmLibraryGuestMemory(t *testing.T) {
	lib, err := instantiate(t, wasmAllocator)
	if err != nil {
		t.Fatalf("NewWasmLibrary failed: %v", err)
	}

	ptr, err := lib.Allocator().Alloc(8)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if ptr == 0 {
		t.Fatal("expected non-zero guest pointer")
	}
	defer lib.Allocator().Free(ptr)

	want := []byte("abi-data")
	if err := lib.Memory().Write(ptr, want); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := lib.Memory().Read(ptr, uint32(len(want)))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip read %q, want %q", got, want)
	}

	// Out-of-range access reports rather than panics.
	if _, err := lib.Memory().Read(1<<20, 1); err == nil {
		t.Fatal("expected out-of-range read to fail")
	}
}

func TestWasmLibraryBindMissingSymbol(t *testing.T) {
	lib, err := instantiate(t, wasmAllocator)
	if err != nil {
		t.Fatalf("NewWasmLibrary failed: %v", err)
	}

	var gettop func(l luainject.State) int32
	if err := lib.Bind("lua_gettop", &gettop); err == nil {
		t.Fatal("expected binding an unexported symbol to fail")
	}
}

// Wasm encoding helpers for hand-assembling the recording stub module below.

func uleb(n int) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if n == 0 {
			return out
		}
	}
}

func section(id byte, payload []byte) []byte {
	out := append([]byte{id}, uleb(len(payload))...)
	return append(out, payload...)
}

func vec(items ...[]byte) []byte {
	out := uleb(len(items))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func wasmName(s string) []byte {
	return append(uleb(len(s)), s...)
}

// funcType encodes (i32^params) -> (i32^results).
func funcType(params, results int) []byte {
	out := append([]byte{0x60}, uleb(params)...)
	for i := 0; i < params; i++ {
		out = append(out, 0x7f)
	}
	out = append(out, uleb(results)...)
	for i := 0; i < results; i++ {
		out = append(out, 0x7f)
	}
	return out
}

func funcBody(code ...byte) []byte {
	b := append([]byte{0x00}, code...) // no locals
	b = append(b, 0x0b)
	return append(uleb(len(b)), b...)
}

func export(name string, kind, index byte) []byte {
	return append(append(wasmName(name), kind), index)
}

// engineStub assembles a module whose engine exports record their pointer
// arguments into fixed memory cells, so the host side of the ABI can be
// checked end to end: a bump allocator (heap pointer in global 0, never
// reused), lua_pcall returning its nargs as the status, lua_getfield storing
// the key pointer at address 4, lua_tolstring writing length 5 and returning
// the address of the "hello" data segment, luaL_loadbufferx storing the
// buffer and name pointers at 16 and 20 and returning the buffer size, and
// lua_pushstring storing the string pointer at 24.
func engineStub() []byte {
	bin := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	bin = append(bin, section(1, vec(
		funcType(1, 1), // malloc
		funcType(1, 0), // free
		funcType(4, 1), // lua_pcall
		funcType(3, 0), // lua_getfield
		funcType(3, 1), // lua_tolstring
		funcType(5, 1), // luaL_loadbufferx
		funcType(2, 0), // lua_pushstring
	))...)
	bin = append(bin, section(3, vec(
		[]byte{0}, []byte{1}, []byte{2}, []byte{3}, []byte{4}, []byte{5}, []byte{6},
	))...)
	bin = append(bin, section(5, vec([]byte{0x00, 0x01}))...)
	// global 0: mutable i32 heap pointer, starts at 1024.
	bin = append(bin, section(6, vec([]byte{0x7f, 0x01, 0x41, 0x80, 0x08, 0x0b}))...)
	bin = append(bin, section(7, vec(
		export("memory", 0x02, 0),
		export("malloc", 0x00, 0),
		export("free", 0x00, 1),
		export("lua_pcall", 0x00, 2),
		export("lua_getfield", 0x00, 3),
		export("lua_tolstring", 0x00, 4),
		export("luaL_loadbufferx", 0x00, 5),
		export("lua_pushstring", 0x00, 6),
	))...)
	bin = append(bin, section(10, vec(
		// malloc: push heap twice, bump by size, return the old value.
		funcBody(0x23, 0x00, 0x23, 0x00, 0x20, 0x00, 0x6a, 0x24, 0x00),
		funcBody(), // free: no-op, so staged bytes stay readable
		funcBody(0x20, 0x01), // pcall: status = nargs
		funcBody(0x41, 0x04, 0x20, 0x02, 0x36, 0x02, 0x00), // getfield: mem[4] = k
		funcBody(0x20, 0x02, 0x41, 0x05, 0x36, 0x02, 0x00, 0x41, 0x08), // tolstring: *len = 5, return 8
		funcBody(
			0x41, 0x10, 0x20, 0x01, 0x36, 0x02, 0x00, // mem[16] = buf
			0x41, 0x14, 0x20, 0x03, 0x36, 0x02, 0x00, // mem[20] = name
			0x20, 0x02, // return size
		),
		funcBody(0x41, 0x18, 0x20, 0x01, 0x36, 0x02, 0x00), // pushstring: mem[24] = s
	))...)
	// data segment: "hello" at address 8, the tolstring result.
	bin = append(bin, section(11, vec(append([]byte{0x00, 0x41, 0x08, 0x0b}, wasmName("hello")...)))...)
	return bin
}

func recordedPtr(t *testing.T, lib *engine.WasmLibrary, cell uint32) uint32 {
	t.Helper()
	b, err := lib.Memory().Read(cell, 4)
	if err != nil {
		t.Fatalf("reading pointer cell %d: %v", cell, err)
	}
	return binary.LittleEndian.Uint32(b)
}

func guestCString(t *testing.T, lib *engine.WasmLibrary, ptr uint32, want string) {
	t.Helper()
	b, err := lib.Memory().Read(ptr, uint32(len(want)+1))
	if err != nil {
		t.Fatalf("reading staged string at %d: %v", ptr, err)
	}
	if string(b[:len(want)]) != want || b[len(want)] != 0 {
		t.Fatalf("staged string at %d is %q, want %q with NUL terminator", ptr, b, want)
	}
}

// Binds the engine entry points against the recording stub and checks what
// actually crossed the boundary: staged strings and buffers in guest memory,
// status conversion, and the tolstring length readback.
func TestWasmLibraryBindEngineCalls(t *testing.T) {
	lib, err := instantiate(t, engineStub())
	if err != nil {
		t.Fatalf("NewWasmLibrary failed: %v", err)
	}
	l := luainject.State(7)

	var pcall func(l luainject.State, nargs, nresults, errfunc int32) luainject.Status
	if err := lib.Bind("lua_pcall", &pcall); err != nil {
		t.Fatalf("Bind lua_pcall failed: %v", err)
	}
	if st := pcall(l, 0, 0, 0); st != luainject.OK {
		t.Fatalf("pcall status = %d, want %d", st, luainject.OK)
	}
	if st := pcall(l, 2, 0, 0); st != luainject.ErrRun {
		t.Fatalf("pcall status = %d, want %d", st, luainject.ErrRun)
	}

	var getfield func(l luainject.State, index int32, k string)
	if err := lib.Bind("lua_getfield", &getfield); err != nil {
		t.Fatalf("Bind lua_getfield failed: %v", err)
	}
	getfield(l, luainject.GlobalsIndex, "package")
	guestCString(t, lib, recordedPtr(t, lib, 4), "package")

	var tolstring func(l luainject.State, index int32) string
	if err := lib.Bind("lua_tolstring", &tolstring); err != nil {
		t.Fatalf("Bind lua_tolstring failed: %v", err)
	}
	if got := tolstring(l, -1); got != "hello" {
		t.Fatalf("tolstring = %q, want %q", got, "hello")
	}

	var pushstring func(l luainject.State, s string)
	if err := lib.Bind("lua_pushstring", &pushstring); err != nil {
		t.Fatalf("Bind lua_pushstring failed: %v", err)
	}
	pushstring(l, "seeded")
	guestCString(t, lib, recordedPtr(t, lib, 24), "seeded")

	var load luainject.LoadFunc
	if err := lib.Bind(engine.LoadBufferXSymbol, &load); err != nil {
		t.Fatalf("Bind %s failed: %v", engine.LoadBufferXSymbol, err)
	}
	src := []byte("return 42")
	if st := load(l, src, "@chunk", ""); int32(st) != int32(len(src)) {
		t.Fatalf("loadbufferx passed size %d, want %d", st, len(src))
	}
	buf, err := lib.Memory().Read(recordedPtr(t, lib, 16), uint32(len(src)))
	if err != nil {
		t.Fatalf("reading staged buffer: %v", err)
	}
	if !bytes.Equal(buf, src) {
		t.Fatalf("staged buffer is %q, want %q", buf, src)
	}
	guestCString(t, lib, recordedPtr(t, lib, 20), "@chunk")
}
