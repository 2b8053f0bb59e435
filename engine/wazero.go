package engine

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	luainject "github.com/hexpatch/lua-injector"
	"github.com/hexpatch/lua-injector/errors"
)

// WasmLibrary binds ABI symbols from an engine build compiled to WebAssembly
// and instantiated by the host under wazero. Symbols resolve to the module's
// exported functions; strings and buffers cross the boundary through guest
// linear memory, allocated with the module's exported malloc/free pair.
//
// Native closures cannot be synthesized into a running wasm instance, so the
// embedding layer registers each CFunction it intends to push together with
// the guest function-table index it was instantiated under; see
// RegisterClosure.
type WasmLibrary struct {
	ctx   context.Context
	mod   api.Module
	mem   luainject.Memory
	alloc luainject.Allocator

	closMu   sync.Mutex
	closures map[uintptr]int32 // CFunction code pointer -> guest funcref index
}

// NewWasmLibrary wraps an instantiated engine module. The module must export
// its linear memory and a malloc/free pair alongside the engine entry points.
func NewWasmLibrary(ctx context.Context, mod api.Module) (*WasmLibrary, error) {
	mem := mod.Memory()
	if mem == nil {
		return nil, errors.NotFound(errors.PhaseResolve, "module exports no memory")
	}
	malloc := mod.ExportedFunction("malloc")
	free := mod.ExportedFunction("free")
	if malloc == nil || free == nil {
		return nil, errors.NotFound(errors.PhaseResolve, "module exports no malloc/free pair")
	}

	return &WasmLibrary{
		ctx:      ctx,
		mod:      mod,
		mem:      &guestMemory{mem: mem},
		alloc:    &guestAllocator{ctx: ctx, malloc: malloc, free: free},
		closures: make(map[uintptr]int32),
	}, nil
}

// Memory exposes the guest linear memory for embedding layers that need to
// stage data for engine calls themselves.
func (w *WasmLibrary) Memory() luainject.Memory {
	return w.mem
}

// Allocator exposes the guest malloc/free pair.
func (w *WasmLibrary) Allocator() luainject.Allocator {
	return w.alloc
}

// RegisterClosure associates fn with the guest function-table index the host
// instantiated it under, so PushClosure can hand the engine a callable
// funcref. Must happen before fn is first pushed.
func (w *WasmLibrary) RegisterClosure(fn luainject.CFunction, index int32) {
	w.closMu.Lock()
	defer w.closMu.Unlock()
	w.closures[reflect.ValueOf(fn).Pointer()] = index
}

func (w *WasmLibrary) closureIndex(fn luainject.CFunction) (int32, bool) {
	w.closMu.Lock()
	defer w.closMu.Unlock()
	idx, ok := w.closures[reflect.ValueOf(fn).Pointer()]
	return idx, ok
}

// Bind implements Library.
func (w *WasmLibrary) Bind(symbol string, fnptr any) error {
	fn := w.mod.ExportedFunction(symbol)
	if fn == nil {
		return errors.NotFound(errors.PhaseResolve, symbol)
	}

	switch symbol {
	case "lua_call":
		p := fnptr.(*func(l luainject.State, nargs, nresults int32))
		*p = func(l luainject.State, nargs, nresults int32) {
			w.invoke(fn, uint64(l), uint64(uint32(nargs)), uint64(uint32(nresults)))
		}

	case "lua_pcall":
		p := fnptr.(*func(l luainject.State, nargs, nresults, errfunc int32) luainject.Status)
		*p = func(l luainject.State, nargs, nresults, errfunc int32) luainject.Status {
			r := w.invoke(fn, uint64(l), uint64(uint32(nargs)), uint64(uint32(nresults)), uint64(uint32(errfunc)))
			return luainject.Status(int32(r))
		}

	case "lua_getfield", "lua_setfield":
		p := fnptr.(*func(l luainject.State, index int32, k string))
		*p = func(l luainject.State, index int32, k string) {
			kptr := w.writeString(k)
			defer w.alloc.Free(kptr)
			w.invoke(fn, uint64(l), uint64(uint32(index)), uint64(kptr))
		}

	case "lua_gettop":
		p := fnptr.(*func(l luainject.State) int32)
		*p = func(l luainject.State) int32 {
			return int32(w.invoke(fn, uint64(l)))
		}

	case "lua_settop", "lua_pushvalue":
		p := fnptr.(*func(l luainject.State, index int32))
		*p = func(l luainject.State, index int32) {
			w.invoke(fn, uint64(l), uint64(uint32(index)))
		}

	case "lua_pushcclosure":
		p := fnptr.(*func(l luainject.State, cf luainject.CFunction, nups int32))
		*p = func(l luainject.State, cf luainject.CFunction, nups int32) {
			idx, ok := w.closureIndex(cf)
			if !ok {
				// Pushing an unregistered closure is a programming error:
				// there is no guest function to reference.
				panic(errors.NotFound(errors.PhaseResolve, "closure not registered with WasmLibrary"))
			}
			w.invoke(fn, uint64(l), uint64(uint32(idx)), uint64(uint32(nups)))
		}

	case "lua_pushstring":
		p := fnptr.(*func(l luainject.State, s string))
		*p = func(l luainject.State, s string) {
			sptr := w.writeString(s)
			defer w.alloc.Free(sptr)
			w.invoke(fn, uint64(l), uint64(sptr))
		}

	case "lua_tolstring":
		p := fnptr.(*func(l luainject.State, index int32) string)
		*p = func(l luainject.State, index int32) string {
			lenPtr, err := w.alloc.Alloc(4)
			if err != nil {
				return ""
			}
			defer w.alloc.Free(lenPtr)

			strPtr := uint32(w.invoke(fn, uint64(l), uint64(uint32(index)), uint64(lenPtr)))
			if strPtr == 0 {
				return ""
			}
			lb, err := w.mem.Read(lenPtr, 4)
			if err != nil {
				return ""
			}
			n := uint32(lb[0]) | uint32(lb[1])<<8 | uint32(lb[2])<<16 | uint32(lb[3])<<24
			data, err := w.mem.Read(strPtr, n)
			if err != nil {
				return ""
			}
			return string(data)
		}

	case "lua_toboolean", "lua_isstring":
		p := fnptr.(*func(l luainject.State, index int32) bool)
		*p = func(l luainject.State, index int32) bool {
			return int32(w.invoke(fn, uint64(l), uint64(uint32(index)))) != 0
		}

	case "lua_topointer":
		p := fnptr.(*func(l luainject.State, index int32) uintptr)
		*p = func(l luainject.State, index int32) uintptr {
			return uintptr(uint32(w.invoke(fn, uint64(l), uint64(uint32(index)))))
		}

	case "lua_type":
		p := fnptr.(*func(l luainject.State, index int32) int32)
		*p = func(l luainject.State, index int32) int32 {
			return int32(w.invoke(fn, uint64(l), uint64(uint32(index))))
		}

	case "lua_typename":
		p := fnptr.(*func(l luainject.State, tp int32) string)
		*p = func(l luainject.State, tp int32) string {
			ptr := uint32(w.invoke(fn, uint64(l), uint64(uint32(tp))))
			return w.readCString(ptr)
		}

	case LoadBufferXSymbol:
		p := fnptr.(*luainject.LoadFunc)
		*p = func(l luainject.State, src []byte, name string, mode string) luainject.Status {
			bufPtr := w.writeBytes(src)
			namePtr := w.writeString(name)
			defer w.alloc.Free(bufPtr)
			defer w.alloc.Free(namePtr)
			var modePtr uint32
			if mode != "" {
				modePtr = w.writeString(mode)
				defer w.alloc.Free(modePtr)
			}
			r := w.invoke(fn, uint64(l), uint64(bufPtr), uint64(uint32(len(src))), uint64(namePtr), uint64(modePtr))
			return luainject.Status(int32(r))
		}

	default:
		return errors.Unsupported(errors.PhaseResolve, fmt.Sprintf("no wasm binding for %s", symbol))
	}
	return nil
}

// invoke calls an exported function, returning its first result or 0. A trap
// inside an engine entry point means guest state is gone; surface it loudly.
func (w *WasmLibrary) invoke(fn api.Function, args ...uint64) uint64 {
	results, err := fn.Call(w.ctx, args...)
	if err != nil {
		Logger().Error("wasm engine call trapped", zap.Error(err))
		panic(err)
	}
	if len(results) == 0 {
		return 0
	}
	return results[0]
}

// writeString copies s into guest memory, NUL-terminated.
func (w *WasmLibrary) writeString(s string) uint32 {
	return w.writeBytes(append([]byte(s), 0))
}

// writeBytes copies b into freshly allocated guest memory.
func (w *WasmLibrary) writeBytes(b []byte) uint32 {
	size := uint32(len(b))
	if size == 0 {
		size = 1
	}
	ptr, err := w.alloc.Alloc(size)
	if err != nil {
		panic(err)
	}
	if len(b) > 0 {
		if err := w.mem.Write(ptr, b); err != nil {
			w.alloc.Free(ptr)
			panic(err)
		}
	}
	return ptr
}

// readCString reads a NUL-terminated string from guest memory.
func (w *WasmLibrary) readCString(ptr uint32) string {
	if ptr == 0 {
		return ""
	}
	var out []byte
	for {
		chunk, err := w.mem.Read(ptr+uint32(len(out)), 64)
		if err != nil {
			// Shrink to the remaining page tail.
			chunk, err = w.mem.Read(ptr+uint32(len(out)), 1)
			if err != nil {
				return string(out)
			}
		}
		for _, c := range chunk {
			if c == 0 {
				return string(out)
			}
			out = append(out, c)
		}
	}
}

// guestMemory adapts wazero linear memory to the Memory interface.
type guestMemory struct {
	mem api.Memory
}

func (g *guestMemory) Read(offset, length uint32) ([]byte, error) {
	data, ok := g.mem.Read(offset, length)
	if !ok {
		return nil, errors.InvalidInput(errors.PhaseResolve, fmt.Sprintf("memory read out of range: %d+%d", offset, length))
	}
	// Copy out: wazero's view aliases the underlying memory, which may move
	// on grow.
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (g *guestMemory) Write(offset uint32, data []byte) error {
	if !g.mem.Write(offset, data) {
		return errors.InvalidInput(errors.PhaseResolve, fmt.Sprintf("memory write out of range: %d+%d", offset, len(data)))
	}
	return nil
}

// guestAllocator adapts the module's malloc/free exports to the Allocator
// interface.
type guestAllocator struct {
	ctx    context.Context
	malloc api.Function
	free   api.Function
}

func (g *guestAllocator) Alloc(size uint32) (uint32, error) {
	results, err := g.malloc.Call(g.ctx, uint64(size))
	if err != nil {
		return 0, errors.Wrap(errors.PhaseResolve, errors.KindAllocation, err, "guest malloc")
	}
	if len(results) == 0 || results[0] == 0 {
		return 0, errors.AllocationFailed(errors.PhaseResolve, size)
	}
	return uint32(results[0]), nil
}

func (g *guestAllocator) Free(ptr uint32) {
	if ptr == 0 {
		return
	}
	_, _ = g.free.Call(g.ctx, uint64(ptr))
}
