package bootstrap

import (
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"

	luainject "github.com/hexpatch/lua-injector"
	"github.com/hexpatch/lua-injector/engine"
	"github.com/hexpatch/lua-injector/errors"
	"github.com/hexpatch/lua-injector/inject"
	"github.com/hexpatch/lua-injector/logbridge"
)

// Installer swaps the compile entry point for a replacement and returns the
// original implementation as the trampoline. The native implementation
// patches code memory; the testbed swaps a function value. Both install at
// most once.
type Installer interface {
	Install(replacement luainject.LoadFunc) (luainject.LoadFunc, error)
}

// Options configures Init. The zero value targets the platform's native
// engine library with no module sources.
type Options struct {
	// Library is the symbol source. Nil resolves the native engine library.
	Library engine.Library

	// Installer hooks the compile entry point. Nil uses the native inline
	// patch against Library, which must then be the native backend.
	Installer Installer

	// Dirs locates the data directory. Nil uses DesktopDirs.
	Dirs Dirs

	// Sources supplies modules to seed on the first host compile call.
	Sources inject.Sources

	// Logger is the process log sink. Nil logs nothing.
	Logger *zap.Logger

	// LibraryName overrides the platform-conventional engine library name
	// when Library is nil.
	LibraryName string

	// EmitFullDiagnostics and StrictMode populate Config.
	EmitFullDiagnostics bool
	StrictMode          bool
}

// Runtime is the process-wide injector state: configuration, the resolved
// symbol table and the installed hook. Built exactly once; never torn down.
type Runtime struct {
	cfg      Config
	lib      *engine.Lib
	injector *inject.Injector
	bridge   *logbridge.Bridge
	log      *zap.Logger
}

var (
	gate    atomic.Bool
	current atomic.Pointer[Runtime]
)

// Init performs the one-time startup: directory discovery, configuration
// assembly, symbol resolution, hook installation. After a successful Init the
// second and every later call reports double_init without touching the
// installed hook; callers must treat that as a fatal programming error. A
// failed Init releases the gate so the caller can retry with corrected
// options.
func Init(opts Options) (rt *Runtime, err error) {
	if !gate.CompareAndSwap(false, true) {
		return nil, errors.DoubleInit()
	}
	defer func() {
		if err != nil {
			gate.Store(false)
		}
	}()

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	engine.SetLogger(log.Named("engine"))

	dirs := opts.Dirs
	if dirs == nil {
		dirs = DesktopDirs{AppName: "lua-injector"}
	}
	var modDir string
	if base, err := dirs.DataDir(); err != nil {
		// ModDir is optional; injection works without it.
		log.Warn("data directory discovery failed", zap.Error(err))
	} else {
		modDir = filepath.Join(base, "mods")
	}

	cfg := Config{
		EmitFullDiagnostics: opts.EmitFullDiagnostics,
		StrictMode:          opts.StrictMode,
		ModDir:              modDir,
	}

	libBackend := opts.Library
	installer := opts.Installer
	if libBackend == nil || installer == nil {
		lib, inst, err := defaultBackend(opts.LibraryName)
		if err != nil {
			return nil, err
		}
		if libBackend == nil {
			libBackend = lib
		}
		if installer == nil {
			installer = inst
		}
	}

	lib, err := engine.Resolve(libBackend)
	if err != nil {
		return nil, err
	}

	bridge := logbridge.New(lib, log.Named("script"))
	injector := inject.New(lib, inject.Config{
		Sources:     opts.Sources,
		Logger:      log.Named("inject"),
		Strict:      cfg.StrictMode,
		Diagnostics: cfg.EmitFullDiagnostics,
		Prelude:     bridge.Install,
	})

	// Install strictly after resolution, strictly before the engine can
	// issue a compile call.
	tramp, err := installer.Install(Guard(log, injector.Detour))
	if err != nil {
		return nil, err
	}
	if err := injector.BindTrampoline(tramp); err != nil {
		return nil, err
	}

	rt = &Runtime{
		cfg:      cfg,
		lib:      lib,
		injector: injector,
		bridge:   bridge,
		log:      log,
	}
	current.Store(rt)

	log.Info("injector installed",
		zap.String("mod_dir", cfg.ModDir),
		zap.Bool("strict", cfg.StrictMode))
	return rt, nil
}

// Current returns the initialized runtime.
func Current() (*Runtime, error) {
	rt := current.Load()
	if rt == nil {
		return nil, errors.NotInitialized("bootstrap has not run")
	}
	return rt, nil
}

// Config returns the immutable startup configuration.
func (rt *Runtime) Config() Config {
	return rt.cfg
}

// Lib returns the resolved symbol table.
func (rt *Runtime) Lib() *engine.Lib {
	return rt.lib
}

// Injector returns the module injector behind the installed hook.
func (rt *Runtime) Injector() *inject.Injector {
	return rt.injector
}

// Bridge returns the print override.
func (rt *Runtime) Bridge() *logbridge.Bridge {
	return rt.bridge
}
