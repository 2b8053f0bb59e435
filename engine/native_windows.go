//go:build windows

package engine

import (
	"golang.org/x/sys/windows"

	"github.com/hexpatch/lua-injector/errors"
)

// OpenNativeLibrary opens the engine library by its platform-conventional
// name. The host has already loaded the engine, so LoadLibrary hands back the
// resident image rather than mapping a second copy.
func OpenNativeLibrary(name string) (*NativeLibrary, error) {
	if name == "" {
		name = DefaultLibraryName()
	}

	handle, err := windows.LoadLibrary(name)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseResolve, errors.KindNotFound, err, "LoadLibrary "+name)
	}

	return &NativeLibrary{
		name: name,
		lookup: func(symbol string) (uintptr, error) {
			addr, err := windows.GetProcAddress(handle, symbol)
			if err != nil {
				return 0, err
			}
			return addr, nil
		},
	}, nil
}
