//go:build cgo

package capi

import "fmt"

/*
#cgo pkg-config: ucx
#include <ucs/type/status.h>
*/
import "C"

// Errno represents a UCS status code (zero for success, positive for
// in-progress, negative for failures).
type Errno int32

// Status codes mirrored from <ucs/type/status.h>. This list covers the
// return values we expect to surface through the Go bindings.
const (
	Success         Errno = Errno(C.UCS_OK)
	ErrInProgress   Errno = Errno(C.UCS_INPROGRESS)
	ErrNoMessage    Errno = Errno(C.UCS_ERR_NO_MESSAGE)
	ErrNoResource   Errno = Errno(C.UCS_ERR_NO_RESOURCE)
	ErrIOError      Errno = Errno(C.UCS_ERR_IO_ERROR)
	ErrNoMemory     Errno = Errno(C.UCS_ERR_NO_MEMORY)
	ErrInvalidParam Errno = Errno(C.UCS_ERR_INVALID_PARAM)
	ErrUnreachable  Errno = Errno(C.UCS_ERR_UNREACHABLE)
	ErrInvalidAddr  Errno = Errno(C.UCS_ERR_INVALID_ADDR)
	ErrNotImpl      Errno = Errno(C.UCS_ERR_NOT_IMPLEMENTED)
	ErrMsgTruncated Errno = Errno(C.UCS_ERR_MESSAGE_TRUNCATED)
	ErrNoProgress   Errno = Errno(C.UCS_ERR_NO_PROGRESS)
	ErrBufTooSmall  Errno = Errno(C.UCS_ERR_BUFFER_TOO_SMALL)
	ErrNoElem       Errno = Errno(C.UCS_ERR_NO_ELEM)
	ErrBusy         Errno = Errno(C.UCS_ERR_BUSY)
	ErrCanceled     Errno = Errno(C.UCS_ERR_CANCELED)
	ErrUnsupported  Errno = Errno(C.UCS_ERR_UNSUPPORTED)
	ErrRejected     Errno = Errno(C.UCS_ERR_REJECTED)
	ErrConnReset    Errno = Errno(C.UCS_ERR_CONNECTION_RESET)
	ErrTimedOut     Errno = Errno(C.UCS_ERR_TIMED_OUT)
)

// Error returns the human-readable string as produced by ucs_status_string.
func (e Errno) Error() string {
	return e.String()
}

// String returns the UCX-provided message for the Errno.
func (e Errno) String() string {
	if e == Success {
		return "success"
	}
	return C.GoString(C.ucs_status_string(C.ucs_status_t(e)))
}

// WithOp adds operation context to the provided Errno.
func (e Errno) WithOp(op string) error {
	if op == "" {
		return e
	}
	return fmt.Errorf("%s: %w", op, e)
}

// ErrorFromStatus converts a ucs_status_t into a Go error. UCS_OK and
// UCS_INPROGRESS are not failures; UCS_INPROGRESS is reported separately by
// the callers that care.
func ErrorFromStatus(status int, op string) error {
	code := Errno(status)
	if code == Success || code == ErrInProgress {
		return nil
	}
	return code.WithOp(op)
}
