//go:build cgo

package capi

import "unsafe"

/*
#cgo pkg-config: ucx
#include "nixlreq.h"
*/
import "C"

// Worker wraps a ucp_worker_h. A worker is the unit of progress: it owns one
// event fd and one set of endpoints.
type Worker struct {
	ptr C.ucp_worker_h
	ctx *Context
}

// NewWorker creates a worker on the context. The thread mode is derived from
// the context's threading level: MTContext workers may be driven by several
// threads, otherwise a worker is serialized to one thread at a time.
func NewWorker(ctx *Context) (*Worker, error) {
	if ctx == nil || ctx.ptr == nil {
		return nil, ErrInvalidParam.WithOp("ucp_worker_create")
	}

	var params C.ucp_worker_params_t
	params.field_mask = C.UCP_WORKER_PARAM_FIELD_THREAD_MODE
	if ctx.mtLevel == MTContext {
		params.thread_mode = C.UCS_THREAD_MODE_MULTI
	} else {
		params.thread_mode = C.UCS_THREAD_MODE_SERIALIZED
	}

	var worker C.ucp_worker_h
	if status := C.ucp_worker_create(ctx.ptr, &params, &worker); status != C.UCS_OK {
		return nil, Errno(status).WithOp("ucp_worker_create")
	}
	return &Worker{ptr: worker, ctx: ctx}, nil
}

// Close destroys the worker. All endpoints and pending requests on it must
// already be released.
func (w *Worker) Close() {
	if w == nil || w.ptr == nil {
		return
	}
	C.ucp_worker_destroy(w.ptr)
	w.ptr = nil
}

// Address returns a copy of the worker's connect-address blob. The blob is
// opaque: size and content are fabric-defined.
func (w *Worker) Address() ([]byte, error) {
	if w == nil || w.ptr == nil {
		return nil, ErrInvalidParam.WithOp("ucp_worker_get_address")
	}

	var addr *C.ucp_address_t
	var length C.size_t
	if status := C.ucp_worker_get_address(w.ptr, &addr, &length); status != C.UCS_OK {
		return nil, Errno(status).WithOp("ucp_worker_get_address")
	}
	out := C.GoBytes(unsafe.Pointer(addr), C.int(length))
	C.ucp_worker_release_address(w.ptr, addr)
	return out, nil
}

// Progress advances the worker and returns non-zero when any events were
// processed.
func (w *Worker) Progress() int {
	if w == nil || w.ptr == nil {
		return 0
	}
	return int(C.ucp_worker_progress(w.ptr))
}

// EventFD returns the worker's wakeup file descriptor. Requires a context
// created with eventing.
func (w *Worker) EventFD() (int, error) {
	if w == nil || w.ptr == nil {
		return -1, ErrInvalidParam.WithOp("ucp_worker_get_efd")
	}
	var fd C.int
	if status := C.ucp_worker_get_efd(w.ptr, &fd); status != C.UCS_OK {
		return -1, Errno(status).WithOp("ucp_worker_get_efd")
	}
	return int(fd), nil
}

// Arm prepares the event fd for a blocking wait. Returns Success when armed,
// ErrBusy when completions raced in since the last full progress drain (the
// caller must drain and retry), any other Errno on failure.
func (w *Worker) Arm() Errno {
	if w == nil || w.ptr == nil {
		return ErrInvalidParam
	}
	return Errno(C.ucp_worker_arm(w.ptr))
}

// Signal wakes a blocked poll on the worker's event fd without any fabric
// event having occurred.
func (w *Worker) Signal() error {
	if w == nil || w.ptr == nil {
		return ErrInvalidParam.WithOp("ucp_worker_signal")
	}
	if status := C.ucp_worker_signal(w.ptr); status != C.UCS_OK {
		return Errno(status).WithOp("ucp_worker_signal")
	}
	return nil
}
