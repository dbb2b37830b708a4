// Package core defines the backend contract and shared data types consumed
// by the data and metadata workload engines.
package core

import (
	"errors"
	"fmt"
	"syscall"
)

// Code is the high-level error category every backend error is classified
// into. The engines branch on Code, never on backend-specific error values.
type Code string

const (
	CodeIO               Code = "io"
	CodeInvalidArgument  Code = "invalid argument"
	CodeNotFound         Code = "not found"
	CodePermissionDenied Code = "permission denied"
	CodeNotSupported     Code = "not supported"
	CodeCancelled        Code = "cancelled"
	CodeUnknown          Code = "unknown"
)

// Error is a structured backend error carrying an errno where one is
// available and the operation that produced it.
type Error struct {
	Op    string
	Code  Code
	Errno syscall.Errno
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op == "" {
		return fmt.Sprintf("dfsbench: %s", msg)
	}
	if e.Errno != 0 {
		return fmt.Sprintf("dfsbench: %s: %s (errno=%d)", e.Op, msg, e.Errno)
	}
	return fmt.Sprintf("dfsbench: %s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Inner }

// Is supports errors.Is against another *Error, matching on Code alone.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// NewError builds a structured error for an operation with no associated
// errno (e.g. a malformed argument).
func NewError(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewErrno builds a structured error carrying a kernel errno, classifying it
// into the nearest Code via mapErrno.
func NewErrno(op string, errno syscall.Errno) *Error {
	return &Error{Op: op, Code: mapErrno(errno), Errno: errno, Msg: errno.Error()}
}

// Wrap classifies an arbitrary error into a structured Error, preserving a
// syscall.Errno if one is present in the chain.
func Wrap(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Op: op, Code: existing.Code, Errno: existing.Errno, Msg: existing.Msg, Inner: existing.Inner}
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return &Error{Op: op, Code: mapErrno(errno), Errno: errno, Msg: errno.Error(), Inner: err}
	}
	return &Error{Op: op, Code: CodeUnknown, Msg: err.Error(), Inner: err}
}

func mapErrno(errno syscall.Errno) Code {
	switch errno {
	case syscall.ENOENT:
		return CodeNotFound
	case syscall.EACCES, syscall.EPERM:
		return CodePermissionDenied
	case syscall.EINVAL, syscall.E2BIG:
		return CodeInvalidArgument
	case syscall.ENOSYS, syscall.EOPNOTSUPP:
		return CodeNotSupported
	default:
		return CodeIO
	}
}

// Is reports whether err classifies as code, looking through wrapped errors.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// ErrNotSupported is the canonical sentinel returned by optional Backend
// operations that a given driver chooses not to implement.
var ErrNotSupported = NewError("", CodeNotSupported, "operation not supported by this backend")

// ErrCancelled is the canonical sentinel synthesized as a completion result
// when cancel(token) races a still-pending transfer.
var ErrCancelled = NewError("", CodeCancelled, "transfer cancelled")
