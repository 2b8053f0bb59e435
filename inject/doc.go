// Package inject compiles named buffers of Lua source and publishes the
// results into the interpreter's module-preload table.
//
// Injector.Inject implements the stack-safe registration protocol: compile
// through the trampolined original entry point, evaluate the chunk under a
// protected call, wrap the single result in an identity closure and store it
// under package.preload[name]. Either the preload entry is set or the table
// is left untouched; the operand stack depth is restored on every path, so
// the host never observes a partial registration.
//
// Injector.Detour is the host-facing replacement for the compile entry
// point: it seeds pending module sources exactly once, then forwards the
// host's own buffer through the trampoline unchanged.
package inject
