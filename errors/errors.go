package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseResolve Phase = "resolve" // symbol resolution
	PhaseHook    Phase = "hook"    // entry-point patching
	PhaseInject  Phase = "inject"  // module injection
	PhasePrint   Phase = "print"   // log bridge
	PhaseBoot    Phase = "boot"    // startup / singleton init
)

// Kind categorizes the error
type Kind string

const (
	KindMissingSymbol    Kind = "missing_symbol"
	KindAlreadyInstalled Kind = "already_installed"
	KindPatchRejected    Kind = "patch_rejected"
	KindCompileFailed    Kind = "compile_failed"
	KindRuntimeError     Kind = "runtime_error"
	KindNotInitialized   Kind = "not_initialized"
	KindDoubleInit       Kind = "double_init"
	KindAllocation       Kind = "allocation"
	KindUnsupported      Kind = "unsupported"
	KindInvalidInput     Kind = "invalid_input"
	KindNotFound         Kind = "not_found"
)

// Error is the structured error type used throughout the injector
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Symbol string // ABI symbol name, when the error concerns one
	Chunk  string // chunk display name, when the error concerns one
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Symbol != "" {
		b.WriteString(": symbol ")
		b.WriteString(e.Symbol)
	}
	if e.Chunk != "" {
		b.WriteString(": chunk ")
		b.WriteString(e.Chunk)
	}

	if e.Detail != "" {
		if e.Symbol != "" || e.Chunk != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Symbol sets the ABI symbol name
func (b *Builder) Symbol(name string) *Builder {
	b.err.Symbol = name
	return b
}

// Chunk sets the chunk display name
func (b *Builder) Chunk(name string) *Builder {
	b.err.Chunk = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// MissingSymbol reports a required ABI entry point the engine library lacks.
// Fatal by policy: a partial symbol table is never constructed.
func MissingSymbol(symbol string, cause error) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindMissingSymbol,
		Symbol: symbol,
		Cause:  cause,
	}
}

// AlreadyInstalled reports a second patch attempt on a hooked entry point
func AlreadyInstalled(target uintptr) *Error {
	return &Error{
		Phase:  PhaseHook,
		Kind:   KindAlreadyInstalled,
		Detail: fmt.Sprintf("target %#x is already hooked", target),
		Value:  target,
	}
}

// PatchRejected reports that the platform refused the in-memory patch
func PatchRejected(cause error, detail string) *Error {
	return &Error{
		Phase:  PhaseHook,
		Kind:   KindPatchRejected,
		Detail: detail,
		Cause:  cause,
	}
}

// CompileFailed reports a chunk the engine could not compile
func CompileFailed(chunk string, detail string) *Error {
	return &Error{
		Phase:  PhaseInject,
		Kind:   KindCompileFailed,
		Chunk:  chunk,
		Detail: detail,
	}
}

// RuntimeError reports a protected call that raised an error
func RuntimeError(chunk string, detail string) *Error {
	return &Error{
		Phase:  PhaseInject,
		Kind:   KindRuntimeError,
		Chunk:  chunk,
		Detail: detail,
	}
}

// DoubleInit reports a second runtime initialization attempt
func DoubleInit() *Error {
	return &Error{
		Phase:  PhaseBoot,
		Kind:   KindDoubleInit,
		Detail: "runtime already initialized",
	}
}

// NotInitialized reports use of a facility before its one-time init
func NotInitialized(what string) *Error {
	return &Error{
		Phase:  PhaseBoot,
		Kind:   KindNotInitialized,
		Detail: what,
	}
}

// AllocationFailed reports a guest memory allocation failure
func AllocationFailed(phase Phase, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes", size),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotFound creates a lookup failure error
func NotFound(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: what,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
