package engine

import (
	luainject "github.com/hexpatch/lua-injector"
	"github.com/hexpatch/lua-injector/errors"
)

// Library resolves named ABI entry points into callable Go functions.
//
// Bind stores a function for symbol name into fnptr, which must be a non-nil
// pointer to one of the Lib field types. Backends adapt their own calling
// machinery (dlsym'd addresses, wasm exports, in-process shims) to those
// shapes. A symbol the backend cannot provide is an error; Resolve treats it
// as fatal.
type Library interface {
	Bind(name string, fnptr any) error
}

// TargetLocator is implemented by backends that can expose the raw in-memory
// address of a symbol, as needed to patch the compile entry point.
type TargetLocator interface {
	Locate(name string) (uintptr, error)
}

// Lib is the resolved symbol table: one typed function per required entry
// point of the Lua 5.1 / LuaJIT stack ABI. Populated exactly once by Resolve
// and never mutated afterwards.
type Lib struct {
	// Call invokes the callable at the top of the stack with nargs arguments,
	// leaving nresults results. Errors propagate to the enclosing protected
	// call.
	Call func(l luainject.State, nargs, nresults int32)

	// PCall is the protected variant: on success results are on the stack, on
	// failure a single error object is and the status is non-OK.
	PCall func(l luainject.State, nargs, nresults, errfunc int32) luainject.Status

	// GetField pushes t[k] where t is the value at index.
	GetField func(l luainject.State, index int32, k string)

	// SetField pops the top value v and sets t[k] = v where t is the value at
	// index, computed while v is still on the stack.
	SetField func(l luainject.State, index int32, k string)

	// GetTop returns the current operand stack depth.
	GetTop func(l luainject.State) int32

	// SetTop truncates or extends the stack to index; negative indices count
	// from the top, so SetTop(l, -2) pops one value.
	SetTop func(l luainject.State, index int32)

	// PushValue pushes a copy of the value at index, including pseudo-indices.
	PushValue func(l luainject.State, index int32)

	// PushClosure pushes fn as a native closure capturing the nups topmost
	// stack values as its upvalues, popping them.
	PushClosure func(l luainject.State, fn luainject.CFunction, nups int32)

	// PushString pushes a copy of s onto the stack.
	PushString func(l luainject.State, s string)

	// ToString converts the value at index to a string by the engine's
	// lua_tolstring convention: strings and numbers convert, everything else
	// yields "".
	ToString func(l luainject.State, index int32) string

	// ToBoolean reports the value at index under Lua truthiness rules.
	ToBoolean func(l luainject.State, index int32) bool

	// ToPointer returns a stable identity for the value at index, or 0 when
	// the value has none.
	ToPointer func(l luainject.State, index int32) uintptr

	// Type returns the type tag of the value at index.
	Type func(l luainject.State, index int32) int32

	// TypeName returns the engine's display name for a type tag.
	TypeName func(l luainject.State, tp int32) string

	// IsString reports whether the value at index is a string or a number.
	IsString func(l luainject.State, index int32) bool

	// LoadBufferX is the module-compile entry point, resolved both as the
	// patch target and for direct compilation before the hook is installed.
	LoadBufferX luainject.LoadFunc
}

// LoadBufferXSymbol is the name of the hooked compile entry point.
const LoadBufferXSymbol = "luaL_loadbufferx"

// Required returns the full set of ABI symbols Resolve binds, in binding
// order. Every one of them must be present; there is no degraded mode.
func Required() []string {
	return []string{
		"lua_call",
		"lua_pcall",
		"lua_getfield",
		"lua_setfield",
		"lua_gettop",
		"lua_settop",
		"lua_pushvalue",
		"lua_pushcclosure",
		"lua_pushstring",
		"lua_tolstring",
		"lua_toboolean",
		"lua_topointer",
		"lua_type",
		"lua_typename",
		"lua_isstring",
		LoadBufferXSymbol,
	}
}

// Resolve builds the symbol table from lib. Binding is all-or-nothing: the
// first symbol the backend cannot provide aborts resolution, because an
// engine build missing any of them is unsupported.
func Resolve(lib Library) (*Lib, error) {
	t := &Lib{}
	bindings := []struct {
		name string
		ptr  any
	}{
		{"lua_call", &t.Call},
		{"lua_pcall", &t.PCall},
		{"lua_getfield", &t.GetField},
		{"lua_setfield", &t.SetField},
		{"lua_gettop", &t.GetTop},
		{"lua_settop", &t.SetTop},
		{"lua_pushvalue", &t.PushValue},
		{"lua_pushcclosure", &t.PushClosure},
		{"lua_pushstring", &t.PushString},
		{"lua_tolstring", &t.ToString},
		{"lua_toboolean", &t.ToBoolean},
		{"lua_topointer", &t.ToPointer},
		{"lua_type", &t.Type},
		{"lua_typename", &t.TypeName},
		{"lua_isstring", &t.IsString},
		{LoadBufferXSymbol, &t.LoadBufferX},
	}

	for _, b := range bindings {
		if err := lib.Bind(b.name, b.ptr); err != nil {
			return nil, errors.MissingSymbol(b.name, err)
		}
	}
	return t, nil
}

// Pop removes n values from the top of the stack.
func (t *Lib) Pop(l luainject.State, n int32) {
	t.SetTop(l, -n-1)
}
