//go:build cgo

package capi

import "unsafe"

/*
#cgo pkg-config: ucx
#include "nixlreq.h"
*/
import "C"

// Req is an opaque token for an in-flight operation. It addresses the
// nixl_req_t tail reserved in front of the UCX request, so the chain links
// and the held AM buffer travel with the request at no extra allocation.
type Req unsafe.Pointer

func reqTail(r Req) *C.nixl_req_t {
	return (*C.nixl_req_t)(unsafe.Pointer(r))
}

// classifyReqPtr folds a ucs_status_ptr_t into the three-valued contract:
// nil request + Success for inline completion, a request + ErrInProgress for
// a posted operation, and an Errno for failure.
func classifyReqPtr(ptr C.ucs_status_ptr_t) (Req, Errno) {
	if ptr == nil {
		return nil, Success
	}
	if C.nixl_ptr_is_err(ptr) != 0 {
		return nil, Errno(C.nixl_ptr_status(ptr))
	}
	return Req(unsafe.Pointer(ptr)), ErrInProgress
}

// ReqCompleted reports the tail's completed mark.
func ReqCompleted(r Req) bool {
	return r != nil && reqTail(r).completed != 0
}

// ReqMarkCompleted sets the tail's completed mark.
func ReqMarkCompleted(r Req) {
	if r != nil {
		reqTail(r).completed = 1
	}
}

// ReqSetAmBuffer hands ownership of a C-allocated message buffer to the
// request tail. The buffer is freed when the request is reset or when the
// context tears the request pool down.
func ReqSetAmBuffer(r Req, buf unsafe.Pointer, n uintptr) {
	if r == nil {
		return
	}
	tail := reqTail(r)
	tail.am_buf = buf
	tail.am_len = C.size_t(n)
}

// ReqNext returns the next chain link, or nil.
func ReqNext(r Req) Req {
	if r == nil {
		return nil
	}
	return Req(unsafe.Pointer(reqTail(r).next))
}

// ReqPrev returns the previous chain link, or nil.
func ReqPrev(r Req) Req {
	if r == nil {
		return nil
	}
	return Req(unsafe.Pointer(reqTail(r).prev))
}

// ReqSetNext links r's next pointer.
func ReqSetNext(r, next Req) {
	if r != nil {
		reqTail(r).next = (*C.nixl_req_t)(unsafe.Pointer(next))
	}
}

// ReqSetPrev links r's prev pointer.
func ReqSetPrev(r, prev Req) {
	if r != nil {
		reqTail(r).prev = (*C.nixl_req_t)(unsafe.Pointer(prev))
	}
}

// SentinelAlloc allocates a chain anchor outside the UCX request pool. The
// anchor reads as completed so status polls skip it.
func SentinelAlloc() Req {
	return Req(unsafe.Pointer(C.nixl_req_sentinel_alloc()))
}

// SentinelFree releases a chain anchor.
func SentinelFree(r Req) {
	if r != nil {
		C.nixl_req_sentinel_free(reqTail(r))
	}
}

// Reset restores the tail to its initial state, releasing any held AM
// buffer. UCX runs the init callback only when the pool chunk is first
// allocated, so chain owners reset a token before returning it. Tokens
// released without a reset keep their buffer until the pool's cleanup
// callback runs.
func Reset(r Req) {
	if r == nil {
		return
	}
	C.nixl_req_cleanup(unsafe.Pointer(r))
	C.nixl_req_init(unsafe.Pointer(r))
}

// Test advances the worker once and polls the request status.
func (w *Worker) Test(r Req) Errno {
	if w == nil || w.ptr == nil {
		return ErrInvalidParam
	}
	C.ucp_worker_progress(w.ptr)
	if r == nil {
		return Success
	}
	return Errno(C.ucp_request_check_status(unsafe.Pointer(r)))
}

// CheckStatus polls the request without driving progress.
func (w *Worker) CheckStatus(r Req) Errno {
	if r == nil {
		return Success
	}
	return Errno(C.ucp_request_check_status(unsafe.Pointer(r)))
}

// Cancel attempts to abort an uncompleted request. Completion still surfaces
// through the request's status.
func (w *Worker) Cancel(r Req) {
	if w == nil || w.ptr == nil || r == nil {
		return
	}
	C.ucp_request_cancel(w.ptr, unsafe.Pointer(r))
}

// Release returns the request to the worker's pool. The fabric keeps the
// request alive until any in-flight operation on it completes.
func (w *Worker) Release(r Req) {
	if r == nil {
		return
	}
	C.ucp_request_free(unsafe.Pointer(r))
}
