package luainject

// State is an opaque reference to one interpreter instance, supplied by the
// host on every call. It is borrowed, never owned: valid only for the duration
// of the current host call and never freed by this library.
type State uintptr

// CFunction is a native closure invocable by the interpreter. By the Lua
// calling convention its arguments are already on the operand stack and the
// return value is the number of results it pushed.
type CFunction func(l State) int32

// LoadFunc is the shape of the module-compile entry point: compile src as a
// chunk named name (with an optional compile mode) and push the resulting
// callable chunk, returning a Status code.
type LoadFunc func(l State, src []byte, name string, mode string) Status

// Status is a return code from a compile or protected call.
type Status int32

const (
	OK           Status = 0
	ErrRun       Status = 2 // runtime error inside a protected call
	ErrSyntax    Status = 3 // compile error
	ErrMemory    Status = 4
	ErrErrHandle Status = 5
)

// GlobalsIndex is the pseudo-index of the globals table in the Lua 5.1 /
// LuaJIT ABI. Upvalues of the running closure live immediately below it.
const GlobalsIndex int32 = -10002

// UpvalueIndex returns the pseudo-index of the i-th upvalue (1-based) of the
// currently executing native closure.
func UpvalueIndex(i int32) int32 {
	return GlobalsIndex - i
}

// Value type tags as reported by lua_type.
const (
	TypeNil      int32 = 0
	TypeBoolean  int32 = 1
	TypeNumber   int32 = 3
	TypeString   int32 = 4
	TypeTable    int32 = 5
	TypeFunction int32 = 6
)
