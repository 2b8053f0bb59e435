// Package logbridge replaces the scripts' print with a native closure that
// routes output through the host process log.
package logbridge

import (
	"strings"

	"go.uber.org/zap"

	luainject "github.com/hexpatch/lua-injector"
	"github.com/hexpatch/lua-injector/engine"
)

// Bridge converts print arguments with the engine's own tostring, so the
// emitted text matches what scripts would see natively, including
// metamethod-driven formatting.
type Bridge struct {
	lib *engine.Lib
	log *zap.Logger
}

// New creates a Bridge emitting through log.
func New(lib *engine.Lib, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{lib: lib, log: log}
}

// Print is the native print override. Each argument is converted through the
// global tostring and the results are joined with tabs into one log line, in
// original argument order. Zero results are returned to the host, and the
// per-argument conversion leaves no residue on the stack.
func (b *Bridge) Print(l luainject.State) int32 {
	argc := b.lib.GetTop(l)

	parts := make([]string, 0, argc)
	for i := int32(1); i <= argc; i++ {
		f := b.lib.Begin(l)
		b.lib.GetField(l, luainject.GlobalsIndex, "tostring")
		b.lib.PushValue(l, i)
		b.lib.Call(l, 1, 1)
		parts = append(parts, b.lib.ToString(l, -1))
		f.Restore()
	}

	b.log.Info(strings.Join(parts, "\t"))
	return 0
}

// Install publishes the override as the global print for l.
func (b *Bridge) Install(l luainject.State) {
	b.lib.PushClosure(l, b.Print, 0)
	b.lib.SetField(l, luainject.GlobalsIndex, "print")
}
