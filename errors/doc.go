// Package errors provides structured error types for the injector.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type includes context useful when diagnosing a failed
// injection from a crash log: the ABI symbol involved, the chunk display name,
// and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseInject, errors.KindRuntimeError).
//		Chunk("@mod_init").
//		Detail("chunk raised during evaluation").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.MissingSymbol("lua_pcall", cause)
//	err := errors.CompileFailed("mod_init", msg)
//
// All errors implement the standard error interface and support errors.Is/As.
// Two *Error values match under errors.Is when Phase and Kind agree.
package errors
