package ucx

import "github.com/w1ldptr/nixl/internal/capi"

// Errno re-exports the UCS status type for consumers of the ucx package.
type Errno = capi.Errno

var (
	// ErrInProgress indicates an operation was posted and has not completed.
	ErrInProgress = capi.ErrInProgress
	// ErrBusy indicates an arm attempt raced with new completions; drain
	// progress and retry.
	ErrBusy = capi.ErrBusy
	// ErrCanceled indicates the operation was aborted by a cancel.
	ErrCanceled = capi.ErrCanceled
)

// ErrInvalidHandle indicates a nil or closed handle was used.
type ErrInvalidHandle struct {
	Resource string
}

func (e ErrInvalidHandle) Error() string {
	return "ucx: invalid or closed " + e.Resource + " handle"
}
