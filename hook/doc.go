// Package hook patches an in-memory native entry point so calls transparently
// redirect to a replacement, while keeping the original implementation
// callable through a trampoline.
//
// This is the only place in the library where code memory is modified.
// Install has one precondition: the target is resolved and not yet patched.
// Its postcondition: the replacement is active and the trampoline is callable.
// There is no uninstall; a hook lives for the rest of the process.
//
// The patch is an absolute jump written over the target's prologue, and the
// trampoline is the displaced prologue bytes followed by a jump back past the
// patch. The prologue is decoded instruction by instruction so the displaced
// range always ends on an instruction boundary; a prologue with a pc-relative
// instruction inside the patch window, or one the decoder cannot size, is
// refused rather than turned into a corrupt trampoline.
package hook
