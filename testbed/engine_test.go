package testbed_test

import (
	stderrors "errors"
	"testing"

	lua "github.com/yuin/gopher-lua"

	luainject "github.com/hexpatch/lua-injector"
	"github.com/hexpatch/lua-injector/engine"
	"github.com/hexpatch/lua-injector/errors"
	"github.com/hexpatch/lua-injector/testbed"
)

func newLib(t *testing.T) (*engine.Lib, *testbed.Engine, luainject.State) {
	t.Helper()
	eng := testbed.New()
	lib, err := engine.Resolve(eng)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	l := eng.NewState()
	t.Cleanup(func() { eng.CloseState(l) })
	return lib, eng, l
}

func TestStackOps(t *testing.T) {
	lib, _, l := newLib(t)

	if top := lib.GetTop(l); top != 0 {
		t.Fatalf("fresh state has depth %d, want 0", top)
	}

	lib.GetField(l, luainject.GlobalsIndex, "print")
	lib.GetField(l, luainject.GlobalsIndex, "missing")
	if top := lib.GetTop(l); top != 2 {
		t.Fatalf("expected depth 2, got %d", top)
	}
	if tp := lib.Type(l, 1); tp != luainject.TypeFunction {
		t.Fatalf("print has type tag %d, want %d", tp, luainject.TypeFunction)
	}
	if tp := lib.Type(l, 2); tp != luainject.TypeNil {
		t.Fatalf("missing global has type tag %d, want %d", tp, luainject.TypeNil)
	}

	lib.PushValue(l, 1)
	if lib.ToPointer(l, 1) != lib.ToPointer(l, 3) {
		t.Fatal("PushValue copy has a different identity")
	}

	// Negative settop pops from the top.
	lib.SetTop(l, -2)
	if top := lib.GetTop(l); top != 2 {
		t.Fatalf("SetTop(-2) left depth %d, want 2", top)
	}
	lib.SetTop(l, 0)
}

func TestToStringConvention(t *testing.T) {
	lib, eng, l := newLib(t)

	L := eng.LState(l)
	L.Push(lua.LString("hello"))
	L.Push(lua.LNumber(4.5))
	L.Push(L.NewTable())

	if got := lib.ToString(l, 1); got != "hello" {
		t.Fatalf("ToString(string) = %q", got)
	}
	if got := lib.ToString(l, 2); got != "4.5" {
		t.Fatalf("ToString(number) = %q", got)
	}
	if got := lib.ToString(l, 3); got != "" {
		t.Fatalf("ToString(table) = %q, want empty", got)
	}
	if !lib.IsString(l, 2) {
		t.Fatal("IsString must accept numbers")
	}
	if lib.IsString(l, 3) {
		t.Fatal("IsString must reject tables")
	}
	lib.SetTop(l, 0)
}

func TestPCallErrorContract(t *testing.T) {
	lib, _, l := newLib(t)

	if st := lib.LoadBufferX(l, []byte(`error("kaboom")`), "@chunk", ""); st != luainject.OK {
		t.Fatalf("compile failed with status %d", st)
	}
	if st := lib.PCall(l, 0, 1, 0); st == luainject.OK {
		t.Fatal("expected protected call to fail")
	}
	// Exactly one error object remains.
	if top := lib.GetTop(l); top != 1 {
		t.Fatalf("expected single error object, depth %d", top)
	}
	if !lib.IsString(l, -1) {
		t.Fatal("expected string error object")
	}
	lib.SetTop(l, 0)
}

func TestCompileSyntaxError(t *testing.T) {
	lib, _, l := newLib(t)

	st := lib.LoadBufferX(l, []byte("return ((("), "@chunk", "")
	if st != luainject.ErrSyntax {
		t.Fatalf("expected syntax status %d, got %d", luainject.ErrSyntax, st)
	}
	// The error message replaces the chunk on the stack.
	if top := lib.GetTop(l); top != 1 {
		t.Fatalf("expected error message on stack, depth %d", top)
	}
	lib.SetTop(l, 0)
}

func TestClosureUpvalues(t *testing.T) {
	lib, eng, l := newLib(t)

	eng.LState(l).Push(lua.LString("captured"))
	lib.PushClosure(l, func(l luainject.State) int32 {
		lib.PushValue(l, luainject.UpvalueIndex(1))
		return 1
	}, 1)
	if top := lib.GetTop(l); top != 1 {
		t.Fatalf("PushClosure must pop upvalues, depth %d", top)
	}

	if st := lib.PCall(l, 0, 1, 0); st != luainject.OK {
		t.Fatalf("closure call failed with status %d", st)
	}
	if got := lib.ToString(l, -1); got != "captured" {
		t.Fatalf("closure returned %q, want the upvalue", got)
	}
	lib.SetTop(l, 0)
}

func TestInstallerSwapsOnce(t *testing.T) {
	eng := testbed.New()
	inst := eng.Installer()

	var calls int
	replacement := func(l luainject.State, src []byte, name string, mode string) luainject.Status {
		calls++
		return luainject.OK
	}

	tramp, err := inst.Install(replacement)
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if tramp == nil {
		t.Fatal("expected the previous implementation as trampoline")
	}

	l := eng.NewState()
	defer eng.CloseState(l)
	if st := eng.HostCompile(l, []byte("return 0"), "@x", ""); st != luainject.OK {
		t.Fatalf("host compile failed with status %d", st)
	}
	if calls != 1 {
		t.Fatalf("replacement ran %d times, want 1", calls)
	}

	// The trampoline still reaches the real compiler.
	top := eng.LState(l).GetTop()
	if st := tramp(l, []byte("return 0"), "@y", ""); st != luainject.OK {
		t.Fatalf("trampoline compile failed with status %d", st)
	}
	eng.LState(l).SetTop(top)

	_, err = eng.Installer().Install(replacement)
	if err == nil {
		t.Fatal("expected second install to fail")
	}
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindAlreadyInstalled {
		t.Fatalf("expected already_installed, got %v", err)
	}

	if _, err := inst.Install(nil); err == nil {
		t.Fatal("expected nil replacement to be rejected")
	}
}

func TestRequireMissingModule(t *testing.T) {
	eng := testbed.New()
	l := eng.NewState()
	defer eng.CloseState(l)

	if _, err := eng.Require(l, "absent"); err == nil {
		t.Fatal("expected Require of an unregistered module to fail")
	}
	if names := eng.PreloadNames(l); len(names) != 0 {
		t.Fatalf("fresh state has preload %v", names)
	}
}
