//go:build darwin || freebsd || linux || windows

package bootstrap

import (
	luainject "github.com/hexpatch/lua-injector"
	"github.com/hexpatch/lua-injector/engine"
	"github.com/hexpatch/lua-injector/hook"
)

// defaultBackend opens the platform-conventional engine library and pairs it
// with an inline-patch installer. Either return slot may go unused by the
// caller when Options supplied its own.
func defaultBackend(name string) (engine.Library, Installer, error) {
	if name == "" {
		name = engine.DefaultLibraryName()
	}
	lib, err := engine.OpenNativeLibrary(name)
	if err != nil {
		return nil, nil, err
	}
	return lib, nativeInstaller{lib: lib}, nil
}

// nativeInstaller patches the compile entry point of an in-process engine
// library with an inline hook.
type nativeInstaller struct {
	lib *engine.NativeLibrary
}

func (i nativeInstaller) Install(replacement luainject.LoadFunc) (luainject.LoadFunc, error) {
	target, err := i.lib.Locate(engine.LoadBufferXSymbol)
	if err != nil {
		return nil, err
	}
	h, err := hook.Install(target, engine.LoadCallback(replacement))
	if err != nil {
		return nil, err
	}
	return engine.LoadFuncAt(h.Trampoline()), nil
}
