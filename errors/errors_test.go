package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want []string
	}{
		{
			name: "phase and kind only",
			err:  &Error{Phase: PhaseBoot, Kind: KindDoubleInit},
			want: []string{"[boot]", "double_init"},
		},
		{
			name: "with symbol",
			err:  MissingSymbol("lua_pcall", nil),
			want: []string{"[resolve]", "missing_symbol", "symbol lua_pcall"},
		},
		{
			name: "with chunk and detail",
			err:  CompileFailed("mod_a", "unexpected symbol near '('"),
			want: []string{"[inject]", "compile_failed", "chunk mod_a", "unexpected symbol"},
		},
		{
			name: "with cause",
			err:  PatchRejected(stderrors.New("mprotect: EACCES"), "target page not writable"),
			want: []string{"[hook]", "patch_rejected", "caused by: mprotect: EACCES"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, sub := range tt.want {
				if !strings.Contains(msg, sub) {
					t.Errorf("Error() = %q, missing %q", msg, sub)
				}
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	a := CompileFailed("mod_a", "syntax")
	b := CompileFailed("mod_b", "different detail")
	if !stderrors.Is(a, b) {
		t.Error("errors with same phase/kind should match")
	}

	c := RuntimeError("mod_a", "oops")
	if stderrors.Is(a, c) {
		t.Error("errors with different kind should not match")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := stderrors.New("dlsym failed")
	err := MissingSymbol("lua_gettop", cause)
	if !stderrors.Is(err, cause) {
		t.Error("Is should find the wrapped cause")
	}
	if stderrors.Unwrap(err) != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseInject, KindRuntimeError).
		Chunk("mod_init").
		Detail("pcall status %d", 2).
		Value(2).
		Build()

	if err.Phase != PhaseInject || err.Kind != KindRuntimeError {
		t.Fatalf("unexpected phase/kind: %s/%s", err.Phase, err.Kind)
	}
	if err.Chunk != "mod_init" {
		t.Errorf("Chunk = %q", err.Chunk)
	}
	if err.Detail != "pcall status 2" {
		t.Errorf("Detail = %q", err.Detail)
	}
	if err.Value != 2 {
		t.Errorf("Value = %v", err.Value)
	}
}
