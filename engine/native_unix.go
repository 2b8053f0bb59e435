//go:build darwin || freebsd || linux

package engine

import (
	"github.com/ebitengine/purego"

	"github.com/hexpatch/lua-injector/errors"
)

// OpenNativeLibrary opens the engine library by its platform-conventional
// name. The host has already loaded the engine, so the dynamic loader hands
// back the resident image rather than mapping a second copy.
func OpenNativeLibrary(name string) (*NativeLibrary, error) {
	if name == "" {
		name = DefaultLibraryName()
	}

	handle, err := purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseResolve, errors.KindNotFound, err, "dlopen "+name)
	}

	return &NativeLibrary{
		name: name,
		lookup: func(symbol string) (uintptr, error) {
			addr, err := purego.Dlsym(handle, symbol)
			if err != nil {
				return 0, err
			}
			return addr, nil
		},
	}, nil
}
