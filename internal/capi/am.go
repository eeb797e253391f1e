//go:build cgo

package capi

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

/*
#cgo pkg-config: ucx
#include "nixlreq.h"
*/
import "C"

// AmSendFlagEager forces the eager protocol for an active-message send.
const AmSendFlagEager = uint32(C.UCP_AM_SEND_FLAG_EAGER)

// RecvAttrRndv is set in the handler's attribute word when the message
// arrived via the rendezvous protocol.
const RecvAttrRndv = uint64(C.UCP_AM_RECV_ATTR_FLAG_RNDV)

// AmRecvHandler is invoked by the fabric, on whichever thread is driving
// progress, for every received active message with the registered id. The
// header and data slices alias fabric-owned memory and must not be retained.
type AmRecvHandler func(header, data []byte, attrs uint64) Errno

var (
	amHandlerSeq atomic.Uintptr
	amHandlerMu  sync.RWMutex
	amHandlers   = map[uintptr]AmRecvHandler{}
)

// RegisterAmHandler installs fn for active messages with the given id on the
// worker. Handlers stay registered for the worker's lifetime.
func (w *Worker) RegisterAmHandler(id uint, fn AmRecvHandler) error {
	if w == nil || w.ptr == nil || fn == nil {
		return ErrInvalidParam.WithOp("ucp_worker_set_am_recv_handler")
	}

	cbID := amHandlerSeq.Add(1)
	amHandlerMu.Lock()
	amHandlers[cbID] = fn
	amHandlerMu.Unlock()

	var params C.ucp_am_handler_param_t
	params.field_mask = C.UCP_AM_HANDLER_PARAM_FIELD_ID |
		C.UCP_AM_HANDLER_PARAM_FIELD_CB |
		C.UCP_AM_HANDLER_PARAM_FIELD_ARG
	params.id = C.uint(id)
	params.arg = unsafe.Pointer(cbID) // registry key, not a Go pointer
	cbAddr := (*C.ucp_am_recv_callback_t)(unsafe.Pointer(&params.cb))
	*cbAddr = (C.ucp_am_recv_callback_t)(C.nixl_am_recv_cb)

	status := C.ucp_worker_set_am_recv_handler(w.ptr, &params)
	if status != C.UCS_OK {
		amHandlerMu.Lock()
		delete(amHandlers, cbID)
		amHandlerMu.Unlock()
		return Errno(status).WithOp("ucp_worker_set_am_recv_handler")
	}
	return nil
}

// SendAm posts an active message. Header and payload must point at C-managed
// memory that outlives the operation; the engine keeps fixed headers and
// parks per-message payloads in the request tail. A nil Req with Success
// means the message completed inline.
func (w *Worker) SendAm(ep *Ep, id uint, hdr unsafe.Pointer, hdrLen uintptr,
	payload unsafe.Pointer, payloadLen uintptr, flags uint32) (Req, Errno) {
	if w == nil || w.ptr == nil || ep == nil || ep.ptr == nil {
		return nil, ErrInvalidParam
	}

	var params C.ucp_request_param_t
	if flags != 0 {
		params.op_attr_mask = C.UCP_OP_ATTR_FIELD_FLAGS
		params.flags = C.uint32_t(flags)
	}

	ptr := C.ucp_am_send_nbx(ep.ptr, C.uint(id), hdr, C.size_t(hdrLen),
		payload, C.size_t(payloadLen), &params)
	return classifyReqPtr(ptr)
}
