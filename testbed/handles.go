package testbed

import (
	"sync"

	luainject "github.com/hexpatch/lua-injector"
)

// handleTable maps opaque State handles to live interpreter states. Handles
// start at 1 so a zero State is always invalid.
type handleTable struct {
	mu      sync.Mutex
	next    uintptr
	entries map[luainject.State]*engineState
}

func newHandleTable() *handleTable {
	return &handleTable{
		next:    1,
		entries: make(map[luainject.State]*engineState),
	}
}

// insert registers st and returns its handle.
func (t *handleTable) insert(st *engineState) luainject.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := luainject.State(t.next)
	t.next++
	t.entries[h] = st
	return h
}

// get retrieves the state for h.
func (t *handleTable) get(h luainject.State) (*engineState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.entries[h]
	return st, ok
}

// remove drops h and returns its state, if any.
func (t *handleTable) remove(h luainject.State) (*engineState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.entries[h]
	if ok {
		delete(t.entries, h)
	}
	return st, ok
}

// len returns the number of live states.
func (t *handleTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
