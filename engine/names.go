package engine

import "runtime"

// DefaultLibraryName returns the platform-conventional name of the engine
// library the host has already loaded. Resolution goes through the dynamic
// loader, so an already-resident library is found without touching disk.
func DefaultLibraryName() string {
	switch runtime.GOOS {
	case "windows":
		return "lua51.dll"
	case "darwin":
		return "../Frameworks/Lua.framework/Versions/A/Lua"
	case "linux":
		return "libluajit-5.1.so.2"
	case "android":
		return "liblove.so"
	default:
		return "liblua5.1.so"
	}
}
