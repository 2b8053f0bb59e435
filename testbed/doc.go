// Package testbed exposes an in-process Lua 5.1 interpreter (gopher-lua)
// through the same stack ABI the injector drives on real deployments.
//
// It implements engine.Library, so engine.Resolve builds a fully functional
// symbol table against it, and provides a swap-based hook installer with the
// same install-once/trampoline contract as the native inline patch. Tests and
// the interactive tool use it to run the complete injection path against a
// genuinely executing engine.
//
// States are handed out as opaque handles, mirroring how the host passes
// lua_State pointers across the ABI.
package testbed
