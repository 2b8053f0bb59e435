//go:build darwin || freebsd || linux || windows

package engine

import (
	"reflect"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	luainject "github.com/hexpatch/lua-injector"
	"github.com/hexpatch/lua-injector/errors"
)

// NativeLibrary binds ABI symbols from an engine shared library that is
// already resident in the host process. Symbols with plain scalar or string
// signatures bind directly; the three entry points whose C shape differs from
// the Lib field shape (lua_tolstring's length out-parameter,
// lua_pushcclosure's function pointer, luaL_loadbufferx's buffer+length pair)
// get thin wrappers.
type NativeLibrary struct {
	name   string
	lookup func(symbol string) (uintptr, error)

	cbMu sync.Mutex
	cbs  map[uintptr]uintptr // CFunction code pointer -> C callback
}

// Name returns the library name the backend was opened with.
func (n *NativeLibrary) Name() string {
	return n.name
}

// Locate returns the raw in-memory address of symbol. Used to find the patch
// target for hook installation.
func (n *NativeLibrary) Locate(symbol string) (uintptr, error) {
	return n.lookup(symbol)
}

// Bind implements Library.
func (n *NativeLibrary) Bind(symbol string, fnptr any) error {
	addr, err := n.lookup(symbol)
	if err != nil {
		return err
	}
	if addr == 0 {
		return errors.NotFound(errors.PhaseResolve, symbol)
	}

	switch symbol {
	case "lua_tolstring":
		p, ok := fnptr.(*func(l luainject.State, index int32) string)
		if !ok {
			return errors.InvalidInput(errors.PhaseResolve, "lua_tolstring binding target has wrong type")
		}
		var raw func(l luainject.State, index int32, length *uintptr) string
		purego.RegisterFunc(&raw, addr)
		*p = func(l luainject.State, index int32) string {
			var size uintptr
			return raw(l, index, &size)
		}

	case "lua_pushcclosure":
		p, ok := fnptr.(*func(l luainject.State, fn luainject.CFunction, nups int32))
		if !ok {
			return errors.InvalidInput(errors.PhaseResolve, "lua_pushcclosure binding target has wrong type")
		}
		var raw func(l luainject.State, fn uintptr, nups int32)
		purego.RegisterFunc(&raw, addr)
		*p = func(l luainject.State, fn luainject.CFunction, nups int32) {
			raw(l, n.callbackFor(fn), nups)
		}

	case LoadBufferXSymbol:
		p, ok := fnptr.(*luainject.LoadFunc)
		if !ok {
			return errors.InvalidInput(errors.PhaseResolve, "luaL_loadbufferx binding target has wrong type")
		}
		*p = LoadFuncAt(addr)

	default:
		purego.RegisterFunc(fnptr, addr)
	}
	return nil
}

// callbackFor returns a C-callable pointer for fn, creating it on first use.
// Callbacks are a scarce, never-freed resource, so they are cached by code
// pointer: native closures must carry their state in engine upvalues, not in
// Go captures.
func (n *NativeLibrary) callbackFor(fn luainject.CFunction) uintptr {
	key := reflect.ValueOf(fn).Pointer()

	n.cbMu.Lock()
	defer n.cbMu.Unlock()
	if n.cbs == nil {
		n.cbs = make(map[uintptr]uintptr)
	}
	if cb, ok := n.cbs[key]; ok {
		return cb
	}
	cb := purego.NewCallback(func(l uintptr) uintptr {
		return uintptr(fn(luainject.State(l)))
	})
	n.cbs[key] = cb
	return cb
}

// LoadFuncAt binds the compile-entry implementation at addr as a LoadFunc.
// Used both during resolution and to make a hook trampoline callable.
func LoadFuncAt(addr uintptr) luainject.LoadFunc {
	var raw func(l luainject.State, buf *byte, sz uintptr, name *byte, mode *byte) int32
	purego.RegisterFunc(&raw, addr)

	return func(l luainject.State, src []byte, name string, mode string) luainject.Status {
		var bp *byte
		if len(src) > 0 {
			bp = &src[0]
		}
		np := cstring(name)
		var mp *byte
		if mode != "" {
			mp = cstring(mode)
		}
		return luainject.Status(raw(l, bp, uintptr(len(src)), np, mp))
	}
}

// LoadCallback returns a C-callable pointer that invokes fn with the C shape
// of the compile entry point. The result is the hook replacement address.
func LoadCallback(fn luainject.LoadFunc) uintptr {
	return purego.NewCallback(func(l, buf, sz, name, mode uintptr) uintptr {
		var src []byte
		if buf != 0 && sz > 0 {
			src = unsafe.Slice((*byte)(unsafe.Pointer(buf)), sz)
		}
		return uintptr(fn(luainject.State(l), src, goString(name), goString(mode)))
	})
}

// cstring returns a NUL-terminated copy of s. The backing array stays
// reachable through the returned pointer for the duration of the call it is
// passed to.
func cstring(s string) *byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return &b[0]
}

// goString reads a NUL-terminated C string at addr. A zero addr yields "".
func goString(addr uintptr) string {
	if addr == 0 {
		return ""
	}
	p := (*byte)(unsafe.Pointer(addr))
	var n int
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}
