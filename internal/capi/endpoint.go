//go:build cgo

package capi

import "unsafe"

/*
#cgo pkg-config: ucx
#include "nixlreq.h"
*/
import "C"

// Ep wraps a ucp_ep_h addressing one peer worker.
type Ep struct {
	ptr C.ucp_ep_h
}

// Connect creates an endpoint to the peer identified by the address blob.
func (w *Worker) Connect(addr []byte) (*Ep, error) {
	if w == nil || w.ptr == nil {
		return nil, ErrInvalidParam.WithOp("ucp_ep_create")
	}
	if len(addr) == 0 {
		return nil, ErrInvalidAddr.WithOp("ucp_ep_create")
	}

	var params C.ucp_ep_params_t
	params.field_mask = C.UCP_EP_PARAM_FIELD_REMOTE_ADDRESS
	params.address = (*C.ucp_address_t)(unsafe.Pointer(&addr[0]))

	var ep C.ucp_ep_h
	if status := C.ucp_ep_create(w.ptr, &params, &ep); status != C.UCS_OK {
		return nil, Errno(status).WithOp("ucp_ep_create")
	}
	return &Ep{ptr: ep}, nil
}

// DisconnectNB initiates endpoint teardown. The returned request, if any, is
// released immediately: the close completes as the worker makes progress.
func (w *Worker) DisconnectNB(ep *Ep) error {
	if w == nil || w.ptr == nil || ep == nil || ep.ptr == nil {
		return ErrInvalidParam.WithOp("ucp_ep_close_nbx")
	}

	var params C.ucp_request_param_t
	ptr := C.ucp_ep_close_nbx(ep.ptr, &params)
	ep.ptr = nil
	if ptr == nil {
		return nil
	}
	if C.nixl_ptr_is_err(ptr) != 0 {
		return Errno(C.nixl_ptr_status(ptr)).WithOp("ucp_ep_close_nbx")
	}
	C.ucp_request_free(ptr)
	return nil
}

// FlushEp posts a flush of all previously issued one-sided operations on the
// endpoint. A nil request with nil error means the flush completed inline.
func (w *Worker) FlushEp(ep *Ep) (Req, Errno) {
	if w == nil || w.ptr == nil || ep == nil || ep.ptr == nil {
		return nil, ErrInvalidParam
	}

	var params C.ucp_request_param_t
	ptr := C.ucp_ep_flush_nbx(ep.ptr, &params)
	return classifyReqPtr(ptr)
}
