//go:build !(darwin || freebsd || linux || windows)

package bootstrap

import (
	"github.com/hexpatch/lua-injector/engine"
	"github.com/hexpatch/lua-injector/errors"
)

func defaultBackend(string) (engine.Library, Installer, error) {
	return nil, nil, errors.Unsupported(errors.PhaseBoot, "native engine libraries")
}
