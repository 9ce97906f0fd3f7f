// Package errors provides structured error types for the vfs-runtime library.
//
// Errors are categorized by Op (which operation failed) and Kind (error
// category). The Error type carries the file path, a detail message, and a
// cause chain.
//
// Use convenience constructors for common patterns:
//
//	err := errors.NotFound(errors.OpRead, "model.bin")
//	err := errors.EndOfFile(errors.OpRead, "model.bin")
//	err := errors.Store(errors.OpWrite, "model.bin", cause)
//
// All errors implement the standard error interface and support errors.Is/As.
// Matching with errors.Is compares Kinds, so callers can test against a bare
// kind sentinel:
//
//	if errors.IsKind(err, errors.KindNotFound) { ... }
package errors
