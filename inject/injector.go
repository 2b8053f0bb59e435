package inject

import (
	"sync/atomic"

	"go.uber.org/zap"

	luainject "github.com/hexpatch/lua-injector"
	"github.com/hexpatch/lua-injector/engine"
	"github.com/hexpatch/lua-injector/errors"
)

// Config controls an Injector.
type Config struct {
	// Sources supplies modules to seed on the first host compile call.
	Sources Sources

	// Logger receives registration and diagnostic output. Defaults to no-op.
	Logger *zap.Logger

	// Strict disables all seeding: every compile call passes straight through
	// to the original implementation.
	Strict bool

	// Diagnostics logs every host compile request flowing through the detour.
	Diagnostics bool

	// Prelude, when set, runs once on the first host compile call, before any
	// sources are seeded. Bootstrap uses it to install the print override.
	Prelude func(l luainject.State)
}

// Injector registers compiled modules in the interpreter's preload table.
//
// A process hosts at most one Injector over a native engine library: the
// identity closure it pushes carries no Go state, so its native callback is
// shared across all pushes.
type Injector struct {
	lib    *engine.Lib
	cfg    Config
	log    *zap.Logger
	tramp  atomic.Pointer[luainject.LoadFunc]
	seeded atomic.Bool
}

// New creates an Injector over a resolved symbol table. The trampoline is
// bound separately once the hook is installed; see BindTrampoline.
func New(lib *engine.Lib, cfg Config) *Injector {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Injector{lib: lib, cfg: cfg, log: log}
}

// BindTrampoline captures the pointer to the original compile implementation.
// It may be called exactly once, strictly after hook installation and before
// any host compile call arrives; a second call is a programming error.
func (inj *Injector) BindTrampoline(tramp luainject.LoadFunc) error {
	if tramp == nil {
		return errors.InvalidInput(errors.PhaseHook, "nil trampoline")
	}
	if !inj.tramp.CompareAndSwap(nil, &tramp) {
		return errors.AlreadyInstalled(0)
	}
	return nil
}

// trampoline returns the bound original implementation, or nil before
// BindTrampoline.
func (inj *Injector) trampoline() luainject.LoadFunc {
	p := inj.tramp.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Inject compiles src as a module named name and registers its evaluated
// result under package.preload[name], wrapped in an identity closure so the
// host materializes it lazily on require. On any failure the preload table is
// left untouched. The stack depth observed by the caller is identical on
// every path.
func (inj *Injector) Inject(l luainject.State, name string, src []byte) error {
	tramp := inj.trampoline()
	if tramp == nil {
		return errors.NotInitialized("trampoline not bound")
	}

	f := inj.lib.Begin(l)
	defer f.Restore()

	// Navigate to package.preload and pin its position.
	inj.lib.GetField(l, luainject.GlobalsIndex, "package")
	inj.lib.GetField(l, -1, "preload")
	preload := inj.lib.GetTop(l)

	if st := tramp(l, src, "@"+name, ""); st != luainject.OK {
		msg := inj.lib.ToString(l, -1)
		inj.log.Warn("module failed to compile",
			zap.String("module", name),
			zap.String("error", msg))
		return errors.CompileFailed(name, msg)
	}

	if st := inj.lib.PCall(l, 0, 1, 0); st != luainject.OK {
		msg := inj.lib.ToString(l, -1)
		inj.log.Warn("module raised during evaluation",
			zap.String("module", name),
			zap.String("error", msg))
		return errors.RuntimeError(name, msg)
	}

	// The chunk's single result becomes the sole upvalue of an identity
	// closure, deferring materialization until the host asks for it.
	inj.lib.PushClosure(l, inj.identity, 1)
	inj.lib.SetField(l, preload, name)

	inj.log.Info("module registered", zap.String("module", name))
	return nil
}

// identity returns its sole upvalue unchanged. It runs arbitrarily many
// times: the preload entry stays callable for the process lifetime.
func (inj *Injector) identity(l luainject.State) int32 {
	inj.lib.PushValue(l, luainject.UpvalueIndex(1))
	return 1
}

// Detour is the replacement for the compile entry point. On the first host
// call it runs the prelude and seeds every pending module source, then for
// this and all later calls forwards the host's own buffer to the original
// implementation unchanged. Seeding failures downgrade to log records: the
// host observes a missing module, never a failed compile of its own chunk.
func (inj *Injector) Detour(l luainject.State, src []byte, name string, mode string) luainject.Status {
	tramp := inj.trampoline()
	if tramp == nil {
		inj.log.Error("compile call before trampoline bind", zap.String("chunk", name))
		// Keep the compile-entry contract: a non-OK status carries an error
		// object on top of the stack.
		inj.lib.PushString(l, "compile entry called before installation completed")
		return luainject.ErrRun
	}

	if inj.cfg.Diagnostics {
		inj.log.Debug("compile request",
			zap.String("chunk", name),
			zap.Int("bytes", len(src)))
	}

	if !inj.cfg.Strict && inj.seeded.CompareAndSwap(false, true) {
		if inj.cfg.Prelude != nil {
			inj.cfg.Prelude(l)
		}
		if inj.cfg.Sources != nil {
			for _, m := range inj.cfg.Sources.Modules() {
				// Individual failures skip registration and leave the stack
				// balanced; the remaining modules still seed.
				_ = inj.Inject(l, m.Name, m.Body)
			}
		}
	}

	return tramp(l, src, name, mode)
}
