package rt

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the type of runtime error.
type ErrorCode int

// Stable error codes - do not change values.
const (
	ErrNullPointer      ErrorCode = 2001 // RT2001: null array reference
	ErrIndexOutOfBounds ErrorCode = 2002 // RT2002: offset or length out of range
	ErrArrayStore       ErrorCode = 2003 // RT2003: element not assignable to destination
	ErrInvalidRef       ErrorCode = 2004 // RT2004: dangling or non-array reference
	ErrStatus           ErrorCode = 2005 // RT2005: malformed stub status
	ErrUnsupported      ErrorCode = 2999 // RT2999: unsupported operation
)

// String returns the code as "RT2001" format.
func (c ErrorCode) String() string {
	return fmt.Sprintf("RT%d", c)
}

// RuntimeError is a failure raised while executing lowered code.
type RuntimeError struct {
	Code    ErrorCode
	Message string
	Origin  uint32 // source-level operation, 0 when unknown
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Origin != 0 {
		return fmt.Sprintf("runtime %s: %s (copy #%d)", e.Code, e.Message, e.Origin)
	}
	return fmt.Sprintf("runtime %s: %s", e.Code, e.Message)
}

func newError(code ErrorCode, format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ArrayStoreError reports a copy that stopped at an element whose value is
// not assignable to the destination element type.
//
// Elements [0, Copied) of the requested range were already written to the
// destination before the failure. The write is irreversible and the copy is
// never retried.
type ArrayStoreError struct {
	Copied int    // number of leading elements already stored
	Index  int    // element index that failed the type check; equals Copied
	Origin uint32 // source-level copy, 0 when unknown
	Detail string
}

// Error implements the error interface.
func (e *ArrayStoreError) Error() string {
	msg := fmt.Sprintf("runtime %s: array store failed at element %d (%d elements copied)", ErrArrayStore, e.Index, e.Copied)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Origin != 0 {
		msg += fmt.Sprintf(" (copy #%d)", e.Origin)
	}
	return msg
}

// Partial returns the half-open range of relative element offsets that were
// mutated before the failure.
func (e *ArrayStoreError) Partial() (from, to int) {
	return 0, e.Copied
}

// Code returns ErrArrayStore so callers can treat both error types uniformly.
func (e *ArrayStoreError) Code() ErrorCode { return ErrArrayStore }

// AsArrayStore unwraps err into an *ArrayStoreError.
func AsArrayStore(err error) (*ArrayStoreError, bool) {
	var ase *ArrayStoreError
	if errors.As(err, &ase) {
		return ase, true
	}
	return nil, false
}

// CodeOf extracts the runtime error code of err, if any.
func CodeOf(err error) (ErrorCode, bool) {
	if ase, ok := AsArrayStore(err); ok {
		return ase.Code(), true
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code, true
	}
	return 0, false
}
