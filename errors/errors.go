package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Subsystem identifies which native module raised the error
type Subsystem string

const (
	SubsystemEngine     Subsystem = "engine"     // resolution engine calls
	SubsystemConfig     Subsystem = "config"     // config document calls
	SubsystemConfigMgr  Subsystem = "configmgr"  // config registry calls
	SubsystemProduct    Subsystem = "product"    // product info calls
	SubsystemDiagnostic Subsystem = "diagnostic" // repository diagnostics
	SubsystemRuntime    Subsystem = "runtime"    // raised by this layer, not the native library
)

// Kind categorizes the error
type Kind string

const (
	KindInitialization Kind = "initialization"
	KindNotReady       Kind = "not_ready"
	KindConfig         Kind = "config"
	KindNotFound       Kind = "not_found"
	KindBadInput       Kind = "bad_input"
	KindDatabase       Kind = "database"
	KindLicense        Kind = "license"
	KindRetryable      Kind = "retryable"
	KindUnrecoverable  Kind = "unrecoverable"
	KindUnknown        Kind = "unknown"
)

// Error is the structured error type used throughout the SDK
type Error struct {
	Subsystem Subsystem
	Kind      Kind
	Code      int64
	Detail    string
	Cause     error
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Subsystem))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Code != 0 {
		fmt.Fprintf(&b, " (code %d)", e.Code)
	}

	if e.Detail != "" {
		b.WriteString(": ")
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

// Is reports whether target matches this error. Zero-valued fields in the
// target act as wildcards, so errors.Is(err, &Error{Kind: KindNotReady})
// matches any not-ready error regardless of subsystem or code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != "" && e.Kind != t.Kind {
		return false
	}
	if t.Subsystem != "" && e.Subsystem != t.Subsystem {
		return false
	}
	if t.Code != 0 && e.Code != t.Code {
		return false
	}
	return true
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(sub Subsystem, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Subsystem: sub,
			Kind:      kind,
		},
	}
}

// Code sets the native error code
func (b *Builder) Code(code int64) *Builder {
	b.err.Code = code
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

// Initialization creates an environment setup error
func Initialization(detail string, cause error) *Error {
	return &Error{
		Subsystem: SubsystemRuntime,
		Kind:      KindInitialization,
		Detail:    detail,
		Cause:     cause,
	}
}

// NotReady creates an error for use of a component before init or after destroy
func NotReady(component string) *Error {
	return &Error{
		Subsystem: SubsystemRuntime,
		Kind:      KindNotReady,
		Detail:    fmt.Sprintf("%s is not ready", component),
	}
}

// Config creates a configuration error
func Config(detail string, cause error) *Error {
	return &Error{
		Subsystem: SubsystemRuntime,
		Kind:      KindConfig,
		Detail:    detail,
		Cause:     cause,
	}
}

// NotFound creates a not-found error
func NotFound(what string, key any) *Error {
	return &Error{
		Subsystem: SubsystemRuntime,
		Kind:      KindNotFound,
		Detail:    fmt.Sprintf("%s %v not found", what, key),
	}
}

// BadInput creates an invalid input error
func BadInput(detail string) *Error {
	return &Error{
		Subsystem: SubsystemRuntime,
		Kind:      KindBadInput,
		Detail:    detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(sub Subsystem, kind Kind, cause error, detail string) *Error {
	return &Error{
		Subsystem: sub,
		Kind:      kind,
		Detail:    detail,
		Cause:     cause,
	}
}

// FromRecord builds an error from a sanitized native exception record and the
// code reported by the subsystem's last-error-code call. When that call
// reported zero the numeric part of the record's own code token is used.
func FromRecord(sub Subsystem, code int64, rec Record) *Error {
	if code == 0 {
		code = rec.Number()
	}
	return &Error{
		Subsystem: sub,
		Kind:      ClassifyCode(code),
		Code:      code,
		Detail:    rec.Message,
	}
}

// IsKind reports whether err or any error in its chain is an *Error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// IsInitialization reports whether err carries an initialization failure
func IsInitialization(err error) bool { return IsKind(err, KindInitialization) }

// IsNotReady reports whether err came from a destroyed or uninitialized component
func IsNotReady(err error) bool { return IsKind(err, KindNotReady) }

// IsConfig reports whether err is a configuration error
func IsConfig(err error) bool { return IsKind(err, KindConfig) }

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }

// IsRetryable reports whether the failed operation can be retried
func IsRetryable(err error) bool { return IsKind(err, KindRetryable) }

// IsUnrecoverable reports whether err requires reinitialization
func IsUnrecoverable(err error) bool { return IsKind(err, KindUnrecoverable) }

// CodeOf returns the native error code carried by err or its chain, 0 when none
func CodeOf(err error) int64 {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Code != 0 {
			return e.Code
		}
		err = stderrors.Unwrap(err)
	}
	return 0
}

// Curated classification of published native error codes. Codes missing from
// the table fall back to their numeric band.
var codeKinds = map[int64]Kind{
	2:    KindBadInput,      // invalid record definition
	23:   KindBadInput,      // conflicting data source values
	27:   KindBadInput,      // unknown data source
	33:   KindNotFound,      // unknown record id
	37:   KindNotFound,      // unknown entity id
	48:   KindUnrecoverable, // engine not initialized
	49:   KindUnrecoverable, // config not initialized
	50:   KindUnrecoverable, // config manager not initialized
	63:   KindUnrecoverable, // diagnostic not initialized
	67:   KindUnrecoverable, // product not initialized
	999:  KindLicense,       // license violation
	1007: KindRetryable,     // database connection lost
	2089: KindRetryable,     // retry timeout exceeded
	7221: KindConfig,        // no engine configuration registered
	7245: KindConfig,        // default config id replace conflict
	7331: KindNotFound,      // config id not registered
}

// ClassifyCode maps a native error code to its kind
func ClassifyCode(code int64) Kind {
	if kind, ok := codeKinds[code]; ok {
		return kind
	}
	switch {
	case code == 0:
		return KindUnknown
	case code >= 1000 && code < 2000:
		return KindDatabase
	case code >= 2000 && code < 3000:
		return KindRetryable
	case code >= 7000 && code < 8000:
		return KindConfig
	case code >= 9000 && code < 10000:
		return KindLicense
	}
	return KindUnknown
}
