//go:build cgo

package capi

import "unsafe"

/*
#cgo pkg-config: ucx
#include "nixlreq.h"
*/
import "C"

// Get posts a one-sided read of size bytes from the remote address into the
// local registered region. A nil Req with Success means inline completion.
func (w *Worker) Get(ep *Ep, local unsafe.Pointer, mem *Mem, remote uint64, rkey *Rkey, size uintptr) (Req, Errno) {
	if w == nil || w.ptr == nil || ep == nil || ep.ptr == nil || rkey == nil || rkey.ptr == nil {
		return nil, ErrInvalidParam
	}

	var params C.ucp_request_param_t
	if mem != nil && mem.ptr != nil {
		params.op_attr_mask = C.UCP_OP_ATTR_FIELD_MEMH
		params.memh = mem.ptr
	}

	ptr := C.ucp_get_nbx(ep.ptr, local, C.size_t(size), C.uint64_t(remote), rkey.ptr, &params)
	return classifyReqPtr(ptr)
}

// Put posts a one-sided write of size bytes from the local registered region
// to the remote address. A nil Req with Success means inline completion.
func (w *Worker) Put(ep *Ep, local unsafe.Pointer, mem *Mem, remote uint64, rkey *Rkey, size uintptr) (Req, Errno) {
	if w == nil || w.ptr == nil || ep == nil || ep.ptr == nil || rkey == nil || rkey.ptr == nil {
		return nil, ErrInvalidParam
	}

	var params C.ucp_request_param_t
	if mem != nil && mem.ptr != nil {
		params.op_attr_mask = C.UCP_OP_ATTR_FIELD_MEMH
		params.memh = mem.ptr
	}

	ptr := C.ucp_put_nbx(ep.ptr, local, C.size_t(size), C.uint64_t(remote), rkey.ptr, &params)
	return classifyReqPtr(ptr)
}
