// Package luainject provides in-process module injection for hosts that embed
// a Lua 5.1 / LuaJIT interpreter through its C ABI.
//
// The library intercepts the single entry point a host uses to compile a named
// chunk of Lua source (luaL_loadbufferx), substitutes its own logic for that
// call, and re-publishes results into the interpreter's module-preload table,
// without disturbing the interpreter's operand stack or the host's control flow.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	luainject/          Root package with the shared ABI types (State, CFunction,
//	                    LoadFunc, pseudo-indices) and guest-memory interfaces
//	├── engine/         Symbol resolution: the Lib function table, native
//	                    (dlopen) and WebAssembly library backends, stack frames
//	├── hook/           Inline patching of the compile entry point, keeping the
//	                    original implementation callable through a trampoline
//	├── inject/         Module injection into package.preload and the
//	                    host-facing compile detour
//	├── logbridge/      A print override that routes script output through the
//	                    host's own stringification into a structured log
//	├── bootstrap/      Per-platform startup: directory discovery, config,
//	                    crash guard, one-time runtime initialization
//	├── errors/         Structured error types for diagnostics
//	└── testbed/        An in-process Lua engine exposing the same ABI surface,
//	                    used by tests and the interactive tool
//
// # Quick Start
//
// Bootstrap once at load time, then let the host drive everything:
//
//	rt, err := bootstrap.Init(bootstrap.Options{
//	    Library: lib,
//	    Sources: mods,
//	    Logger:  logger,
//	})
//	if err != nil {
//	    logger.Fatal("injector init failed", zap.Error(err))
//	}
//
// After Init returns, every compile request the host issues flows through the
// installed detour: pending module sources are registered under
// package.preload, and the host's own buffer is forwarded to the original
// implementation unchanged.
//
// # Thread Safety
//
// The interpreter is single-threaded from this library's perspective: the host
// invokes the compile entry point and native closures only from the engine's
// own execution thread. Lib and the trampoline are immutable after
// initialization and may be read without synchronization. Initialization
// itself is guarded by an atomic set-once gate; a second attempt is an error,
// not a silent no-op.
package luainject
