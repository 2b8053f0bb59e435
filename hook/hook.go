package hook

import (
	"sync"
	"unsafe"

	"github.com/hexpatch/lua-injector/errors"
)

// Hook is an installed inline patch. Immutable after Install.
type Hook struct {
	target      uintptr
	replacement uintptr
	saved       []byte // displaced target prologue
	tramp       uintptr
}

var (
	mu        sync.Mutex
	installed = make(map[uintptr]*Hook)
)

// Install patches target so calls redirect to replacement, and returns a Hook
// whose Trampoline still reaches the original implementation. A target may be
// patched at most once; a second attempt reports already_installed. Patch
// rejection by the platform (page protection, allocation) is an error the
// caller must treat as fatal: an uninstalled hook means zero interception.
func Install(target, replacement uintptr) (*Hook, error) {
	if target == 0 || replacement == 0 {
		return nil, errors.InvalidInput(errors.PhaseHook, "target and replacement must be non-zero")
	}

	mu.Lock()
	defer mu.Unlock()

	if _, ok := installed[target]; ok {
		return nil, errors.AlreadyInstalled(target)
	}

	jmp := jumpTo(replacement)

	// The displaced range must cover the patch with whole instructions: a
	// split instruction would execute its tail bytes as the trampoline's
	// jump-back, and a pc-relative instruction would resolve against the
	// trampoline page instead of the target.
	n, err := displaceLen(target, len(jmp))
	if err != nil {
		return nil, err
	}

	// Save the prologue being displaced.
	saved := make([]byte, n)
	copy(saved, unsafe.Slice((*byte)(unsafe.Pointer(target)), n))

	// Trampoline: displaced prologue, then jump back past the patch.
	back := jumpTo(target + uintptr(n))
	body := make([]byte, 0, n+len(back))
	body = append(body, saved...)
	body = append(body, back...)

	tramp, err := allocExec(body)
	if err != nil {
		return nil, errors.PatchRejected(err, "trampoline allocation")
	}

	if err := writeCode(target, jmp); err != nil {
		_ = releaseExec(tramp, len(body))
		return nil, errors.PatchRejected(err, "target patch")
	}

	h := &Hook{
		target:      target,
		replacement: replacement,
		saved:       saved,
		tramp:       tramp,
	}
	installed[target] = h
	return h, nil
}

// maxInsn is the longest encodable instruction; displaceLen reads this much
// slack past the patch length when scanning for a boundary.
const maxInsn = 15

// displaceLen decodes whole instructions at target until at least min bytes
// are covered and returns the total. An instruction the decoder cannot size,
// or one that is pc-relative and so cannot run from the trampoline page,
// rejects the patch.
func displaceLen(target uintptr, min int) (int, error) {
	buf := unsafe.Slice((*byte)(unsafe.Pointer(target)), min+maxInsn)

	n := 0
	for n < min {
		in := decode(buf[n:])
		if in.length == 0 {
			return 0, errors.New(errors.PhaseHook, errors.KindPatchRejected).
				Detail("undecodable instruction at target+%d", n).
				Build()
		}
		if !in.relocatable {
			return 0, errors.New(errors.PhaseHook, errors.KindPatchRejected).
				Detail("pc-relative instruction at target+%d cannot be displaced", n).
				Build()
		}
		n += in.length
	}
	return n, nil
}

// Target returns the patched address.
func (h *Hook) Target() uintptr {
	return h.target
}

// Replacement returns the address calls are redirected to.
func (h *Hook) Replacement() uintptr {
	return h.replacement
}

// Trampoline returns the address through which the original implementation
// remains callable.
func (h *Hook) Trampoline() uintptr {
	return h.tramp
}
