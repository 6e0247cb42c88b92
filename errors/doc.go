// Package errors provides structured error types for the sz-runtime library.
//
// Errors are categorized by Subsystem (which native module raised them) and
// Kind (what went wrong). Errors drained from the native library also carry
// the numeric engine code, and native exception buffers are cleaned up with
// Sanitize before they become part of an error.
//
// Construct errors with the convenience constructors:
//
//	err := errors.NotReady("environment")
//	err := errors.Config("settings document is not valid JSON", cause)
//	err := errors.NotFound("record", key)
//
// Native return codes become errors through FromRecord, which classifies the
// engine code into a Kind:
//
//	rec := errors.Sanitize(buf)
//	err := errors.FromRecord(errors.SubsystemEngine, rc, rec)
//
// All errors implement the standard error interface and support errors.Is/As;
// the IsKind helpers (IsNotReady, IsNotFound, IsRetryable, ...) match by
// category across wrapping.
package errors
