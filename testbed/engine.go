package testbed

import (
	"bytes"
	"reflect"
	"sync"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"

	luainject "github.com/hexpatch/lua-injector"
	"github.com/hexpatch/lua-injector/engine"
	"github.com/hexpatch/lua-injector/errors"
)

// Engine hosts gopher-lua states behind the stack ABI. It implements
// engine.Library, so the full symbol table resolves against it, and it owns
// the swappable compile entry the installer hooks.
type Engine struct {
	states *handleTable

	installMu sync.Mutex
	installed bool
	load      atomic.Pointer[luainject.LoadFunc]
}

// engineState is one live interpreter with the bookkeeping the ABI shims
// need: the stack of upvalue frames for native closures currently executing.
type engineState struct {
	L   *lua.LState
	ups [][]lua.LValue
}

// New creates an Engine whose compile entry is the built-in loader until an
// installer swaps it.
func New() *Engine {
	e := &Engine{states: newHandleTable()}
	base := luainject.LoadFunc(e.compile)
	e.load.Store(&base)
	return e
}

// NewState creates a fresh interpreter with the standard libraries open and
// returns its opaque handle.
func (e *Engine) NewState() luainject.State {
	st := &engineState{L: lua.NewState()}
	return e.states.insert(st)
}

// CloseState tears down the interpreter behind l.
func (e *Engine) CloseState(l luainject.State) {
	if st, ok := e.states.remove(l); ok {
		st.L.Close()
	}
}

// LState exposes the underlying interpreter for assertions.
func (e *Engine) LState(l luainject.State) *lua.LState {
	return e.state(l).L
}

// HostCompile invokes the current compile entry the way the host would:
// through whatever implementation is installed at call time.
func (e *Engine) HostCompile(l luainject.State, src []byte, name string, mode string) luainject.Status {
	return (*e.load.Load())(l, src, name, mode)
}

func (e *Engine) state(l luainject.State) *engineState {
	st, ok := e.states.get(l)
	if !ok {
		panic(errors.NotFound(errors.PhaseInject, "unknown engine state handle"))
	}
	return st
}

// compile is the built-in compile entry: load src as a chunk named name,
// pushing the chunk on success or the error message on failure.
func (e *Engine) compile(l luainject.State, src []byte, name string, mode string) luainject.Status {
	st := e.state(l)
	fn, err := st.L.Load(bytes.NewReader(src), name)
	if err != nil {
		st.L.Push(lua.LString(err.Error()))
		return luainject.ErrSyntax
	}
	st.L.Push(fn)
	return luainject.OK
}

// value resolves a stack or pseudo index to a value, mirroring the C API:
// positive and negative indices address the current frame, GlobalsIndex the
// globals table, and indices below it the running closure's upvalues.
func (st *engineState) value(idx int32) lua.LValue {
	switch {
	case idx == luainject.GlobalsIndex:
		return st.L.Get(lua.GlobalsIndex)
	case idx < luainject.GlobalsIndex:
		n := int(luainject.GlobalsIndex - idx)
		if len(st.ups) == 0 {
			return lua.LNil
		}
		frame := st.ups[len(st.ups)-1]
		if n < 1 || n > len(frame) {
			return lua.LNil
		}
		return frame[n-1]
	default:
		return st.L.Get(int(idx))
	}
}

// setTop applies lua_settop semantics: negative indices count from the top,
// so setTop(-2) pops one value.
func (st *engineState) setTop(idx int32) {
	n := int(idx)
	if n < 0 {
		n = st.L.GetTop() + n + 1
	}
	st.L.SetTop(n)
}

// Bind implements engine.Library.
func (e *Engine) Bind(symbol string, fnptr any) error {
	switch symbol {
	case "lua_call":
		p := fnptr.(*func(l luainject.State, nargs, nresults int32))
		*p = func(l luainject.State, nargs, nresults int32) {
			e.state(l).L.Call(int(nargs), int(nresults))
		}

	case "lua_pcall":
		p := fnptr.(*func(l luainject.State, nargs, nresults, errfunc int32) luainject.Status)
		*p = func(l luainject.State, nargs, nresults, errfunc int32) luainject.Status {
			st := e.state(l)
			base := st.L.GetTop() - int(nargs) - 1
			if err := st.L.PCall(int(nargs), int(nresults), nil); err != nil {
				// Normalize to the C contract: callable and arguments gone,
				// one error object on the stack.
				st.L.SetTop(base)
				st.L.Push(lua.LString(err.Error()))
				return luainject.ErrRun
			}
			return luainject.OK
		}

	case "lua_getfield":
		p := fnptr.(*func(l luainject.State, index int32, k string))
		*p = func(l luainject.State, index int32, k string) {
			st := e.state(l)
			st.L.Push(st.L.GetField(st.value(index), k))
		}

	case "lua_setfield":
		p := fnptr.(*func(l luainject.State, index int32, k string))
		*p = func(l luainject.State, index int32, k string) {
			st := e.state(l)
			// Resolve the table while the value is still on the stack.
			tbl := st.value(index)
			v := st.L.Get(-1)
			st.L.Pop(1)
			st.L.SetField(tbl, k, v)
		}

	case "lua_gettop":
		p := fnptr.(*func(l luainject.State) int32)
		*p = func(l luainject.State) int32 {
			return int32(e.state(l).L.GetTop())
		}

	case "lua_settop":
		p := fnptr.(*func(l luainject.State, index int32))
		*p = func(l luainject.State, index int32) {
			e.state(l).setTop(index)
		}

	case "lua_pushvalue":
		p := fnptr.(*func(l luainject.State, index int32))
		*p = func(l luainject.State, index int32) {
			st := e.state(l)
			st.L.Push(st.value(index))
		}

	case "lua_pushcclosure":
		p := fnptr.(*func(l luainject.State, fn luainject.CFunction, nups int32))
		*p = func(l luainject.State, fn luainject.CFunction, nups int32) {
			st := e.state(l)
			top := st.L.GetTop()
			ups := make([]lua.LValue, nups)
			for i := range ups {
				ups[i] = st.L.Get(top - int(nups) + 1 + i)
			}
			st.L.Pop(int(nups))
			st.L.Push(st.L.NewFunction(func(*lua.LState) int {
				st.ups = append(st.ups, ups)
				defer func() { st.ups = st.ups[:len(st.ups)-1] }()
				return int(fn(l))
			}))
		}

	case "lua_pushstring":
		p := fnptr.(*func(l luainject.State, s string))
		*p = func(l luainject.State, s string) {
			e.state(l).L.Push(lua.LString(s))
		}

	case "lua_tolstring":
		p := fnptr.(*func(l luainject.State, index int32) string)
		*p = func(l luainject.State, index int32) string {
			v := e.state(l).value(index)
			switch v.Type() {
			case lua.LTString, lua.LTNumber:
				return v.String()
			default:
				return ""
			}
		}

	case "lua_toboolean":
		p := fnptr.(*func(l luainject.State, index int32) bool)
		*p = func(l luainject.State, index int32) bool {
			return lua.LVAsBool(e.state(l).value(index))
		}

	case "lua_topointer":
		p := fnptr.(*func(l luainject.State, index int32) uintptr)
		*p = func(l luainject.State, index int32) uintptr {
			v := e.state(l).value(index)
			switch v.Type() {
			case lua.LTTable, lua.LTFunction, lua.LTUserData, lua.LTThread:
				return reflect.ValueOf(v).Pointer()
			default:
				return 0
			}
		}

	case "lua_type":
		p := fnptr.(*func(l luainject.State, index int32) int32)
		*p = func(l luainject.State, index int32) int32 {
			return typeTag(e.state(l).value(index).Type())
		}

	case "lua_typename":
		p := fnptr.(*func(l luainject.State, tp int32) string)
		*p = func(l luainject.State, tp int32) string {
			return typeName(tp)
		}

	case "lua_isstring":
		p := fnptr.(*func(l luainject.State, index int32) bool)
		*p = func(l luainject.State, index int32) bool {
			t := e.state(l).value(index).Type()
			return t == lua.LTString || t == lua.LTNumber
		}

	case engine.LoadBufferXSymbol:
		p := fnptr.(*luainject.LoadFunc)
		*p = func(l luainject.State, src []byte, name string, mode string) luainject.Status {
			return e.HostCompile(l, src, name, mode)
		}

	default:
		return errors.NotFound(errors.PhaseResolve, symbol)
	}
	return nil
}

// typeTag maps gopher-lua's value types to the C ABI type tags.
func typeTag(t lua.LValueType) int32 {
	switch t {
	case lua.LTNil:
		return luainject.TypeNil
	case lua.LTBool:
		return luainject.TypeBoolean
	case lua.LTNumber:
		return luainject.TypeNumber
	case lua.LTString:
		return luainject.TypeString
	case lua.LTTable:
		return luainject.TypeTable
	case lua.LTFunction:
		return luainject.TypeFunction
	case lua.LTUserData:
		return 7
	case lua.LTThread:
		return 8
	default:
		return -1
	}
}

// typeName maps a C type tag to the engine's display name.
func typeName(tp int32) string {
	switch tp {
	case luainject.TypeNil:
		return "nil"
	case luainject.TypeBoolean:
		return "boolean"
	case 2:
		return "userdata"
	case luainject.TypeNumber:
		return "number"
	case luainject.TypeString:
		return "string"
	case luainject.TypeTable:
		return "table"
	case luainject.TypeFunction:
		return "function"
	case 7:
		return "userdata"
	case 8:
		return "thread"
	default:
		return "no value"
	}
}
