// Package errors provides structured error types for the debugger core.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries a detail message, an optional location path, the offending
// value and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLoad, errors.KindMissingExport).
//		Path("g_regs").
//		Detail("engine module does not export %s", "g_regs").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InitFailure("instantiate engine", cause)
//	err := errors.OutOfBounds(errors.PhaseRuntime, "g_pc", addr, size)
//
// Expected runtime conditions (assembly diagnostics, traps, the instruction
// limit) are reported as data, not errors. The assembly, trap and
// instruction-limit kinds exist so callers can still surface them through an
// error value when they need one.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
