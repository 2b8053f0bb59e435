package testbed

import (
	luainject "github.com/hexpatch/lua-injector"
	"github.com/hexpatch/lua-injector/errors"
)

// SwapInstaller hooks the testbed's compile entry by swapping the function
// value, with the same contract as the native inline patch: install at most
// once, trampoline to the previous implementation, no uninstall.
type SwapInstaller struct {
	e *Engine
}

// Installer returns the hook installer for e's compile entry.
func (e *Engine) Installer() *SwapInstaller {
	return &SwapInstaller{e: e}
}

// Install swaps the compile entry for replacement and returns the previous
// implementation as the trampoline.
func (s *SwapInstaller) Install(replacement luainject.LoadFunc) (luainject.LoadFunc, error) {
	if replacement == nil {
		return nil, errors.InvalidInput(errors.PhaseHook, "nil replacement")
	}

	s.e.installMu.Lock()
	defer s.e.installMu.Unlock()

	if s.e.installed {
		return nil, errors.New(errors.PhaseHook, errors.KindAlreadyInstalled).
			Detail("compile entry already swapped").
			Build()
	}

	old := *s.e.load.Load()
	s.e.load.Store(&replacement)
	s.e.installed = true
	return old, nil
}
