package testbed

import (
	"sort"

	lua "github.com/yuin/gopher-lua"

	luainject "github.com/hexpatch/lua-injector"
	"github.com/hexpatch/lua-injector/errors"
)

// PreloadNames lists the module names currently registered in
// package.preload, sorted.
func (e *Engine) PreloadNames(l luainject.State) []string {
	st := e.state(l)
	tbl, ok := e.preloadTable(st)
	if !ok {
		return nil
	}

	var names []string
	tbl.ForEach(func(k, _ lua.LValue) {
		if s, ok := k.(lua.LString); ok {
			names = append(names, string(s))
		}
	})
	sort.Strings(names)
	return names
}

// Require resolves name the way the host's module system would: consult
// package.preload and invoke the registered entry for its value.
func (e *Engine) Require(l luainject.State, name string) (lua.LValue, error) {
	st := e.state(l)
	tbl, ok := e.preloadTable(st)
	if !ok {
		return lua.LNil, errors.NotFound(errors.PhaseInject, "package.preload missing")
	}

	entry := st.L.GetField(tbl, name)
	if entry == lua.LNil {
		return lua.LNil, errors.NotFound(errors.PhaseInject, "module '"+name+"' not found")
	}

	st.L.Push(entry)
	if err := st.L.PCall(0, 1, nil); err != nil {
		return lua.LNil, errors.Wrap(errors.PhaseInject, errors.KindRuntimeError, err, "loader for '"+name+"'")
	}
	v := st.L.Get(-1)
	st.L.Pop(1)
	return v, nil
}

func (e *Engine) preloadTable(st *engineState) (*lua.LTable, bool) {
	pkg := st.L.GetField(st.L.Get(lua.GlobalsIndex), "package")
	preload := st.L.GetField(pkg, "preload")
	tbl, ok := preload.(*lua.LTable)
	return tbl, ok
}
