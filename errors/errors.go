package errors

import (
	"fmt"
	"strings"
)

// Op indicates which file operation the error occurred in
type Op string

const (
	OpOpen    Op = "open"
	OpClose   Op = "close"
	OpRead    Op = "read"
	OpWrite   Op = "write"
	OpSeek    Op = "seek"
	OpRemove  Op = "remove"
	OpExists  Op = "exists"
	OpConnect Op = "connect" // store connection setup
	OpBridge  Op = "bridge"  // host function marshalling
)

// Kind categorizes the error
type Kind string

const (
	// KindNotFound means the operation requires existing file metadata
	// but none is cached or stored.
	KindNotFound Kind = "not_found"

	// KindEndOfFile means the cursor is at or beyond the logical end on
	// read. It is also raised for a negative seek offset; the reuse is
	// deliberate and matches the original engine's error surface.
	KindEndOfFile Kind = "end_of_file"

	// KindReadOnly means a write was attempted on a read-only handle.
	KindReadOnly Kind = "read_only"

	// KindInvalidVersion means a non-positive version was supplied.
	KindInvalidVersion Kind = "invalid_version"

	// KindInvalidArgument means an unrecognized argument, e.g. whence.
	KindInvalidArgument Kind = "invalid_argument"

	// KindStoreFailure wraps an underlying store transaction error.
	KindStoreFailure Kind = "store_failure"

	// KindClosed means the handle was used after Close.
	KindClosed Kind = "closed"
)

// Error is the structured error type used throughout the library
type Error struct {
	Op     Op
	Kind   Kind
	Path   string
	Detail string
	Cause  error
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Op))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(fmt.Sprintf("%q", e.Path))
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

// Is reports whether target matches this error. Two Errors match when
// their Kinds are equal; a target with a non-empty Op must match that too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op != "" && e.Op != t.Op {
		return false
	}
	return e.Kind == t.Kind
}

// IsKind reports whether err is an *Error of the given kind anywhere in
// its chain.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Convenience constructors for common error patterns

// NotFound reports that no metadata exists for path.
func NotFound(op Op, path string) *Error {
	return &Error{
		Op:     op,
		Kind:   KindNotFound,
		Path:   path,
		Detail: "file does not exist",
	}
}

// EndOfFile reports a read at or beyond the logical end of the file.
func EndOfFile(op Op, path string) *Error {
	return &Error{
		Op:   op,
		Kind: KindEndOfFile,
		Path: path,
	}
}

// NegativeOffset reports a negative seek offset. The kind is end_of_file
// for compatibility with the original engine's error surface.
func NegativeOffset(op Op, path string, offset int64) *Error {
	return &Error{
		Op:     op,
		Kind:   KindEndOfFile,
		Path:   path,
		Detail: fmt.Sprintf("negative offset %d", offset),
	}
}

// ReadOnly reports a write on a read-only handle.
func ReadOnly(op Op, path string) *Error {
	return &Error{
		Op:     op,
		Kind:   KindReadOnly,
		Path:   path,
		Detail: "handle opened read-only",
	}
}

// InvalidVersion reports a non-positive version argument.
func InvalidVersion(op Op, path string, version int) *Error {
	return &Error{
		Op:     op,
		Kind:   KindInvalidVersion,
		Path:   path,
		Detail: fmt.Sprintf("version must be positive, got %d", version),
	}
}

// InvalidArgument reports an unrecognized argument value.
func InvalidArgument(op Op, path, detail string) *Error {
	return &Error{
		Op:     op,
		Kind:   KindInvalidArgument,
		Path:   path,
		Detail: detail,
	}
}

// Closed reports use of a handle after Close.
func Closed(op Op, path string) *Error {
	return &Error{
		Op:     op,
		Kind:   KindClosed,
		Path:   path,
		Detail: "handle is closed",
	}
}

// Store wraps an underlying store transaction error verbatim.
func Store(op Op, path string, cause error) *Error {
	return &Error{
		Op:    op,
		Kind:  KindStoreFailure,
		Path:  path,
		Cause: cause,
	}
}
