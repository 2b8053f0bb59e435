package engine

import (
	luainject "github.com/hexpatch/lua-injector"
)

// Frame captures the operand stack depth on entry to a routine so every exit
// path can restore it. Deferring Restore immediately after Begin guarantees
// the caller observes the same depth regardless of which path returned,
// including error paths:
//
//	f := lib.Begin(l)
//	defer f.Restore()
//
// A routine documented to leave values behind uses Keep instead.
type Frame struct {
	lib *Lib
	l   luainject.State
	top int32
}

// Begin records the current stack depth for l.
func (t *Lib) Begin(l luainject.State) Frame {
	return Frame{lib: t, l: l, top: t.GetTop(l)}
}

// Depth returns the stack depth recorded at entry.
func (f Frame) Depth() int32 {
	return f.top
}

// Restore truncates the stack back to the entry depth. Safe to call more than
// once; values pushed since Begin are discarded.
func (f Frame) Restore() {
	f.lib.SetTop(f.l, f.top)
}

// Keep truncates the stack to the entry depth plus n, for routines documented
// to leave exactly n values behind.
func (f Frame) Keep(n int32) {
	f.lib.SetTop(f.l, f.top+n)
}
