//go:build cgo

package capi

import "unsafe"

/*
#cgo pkg-config: ucx
#include "nixlreq.h"
*/
import "C"

//export goAmRecvCallback
func goAmRecvCallback(arg C.uintptr_t, header unsafe.Pointer, headerLen C.size_t,
	data unsafe.Pointer, length C.size_t, attrs C.uint64_t) C.int {
	amHandlerMu.RLock()
	fn := amHandlers[uintptr(arg)]
	amHandlerMu.RUnlock()
	if fn == nil {
		return C.int(ErrInvalidParam)
	}

	var hdr, payload []byte
	if header != nil && headerLen > 0 {
		hdr = unsafe.Slice((*byte)(header), int(headerLen))
	}
	if data != nil && length > 0 {
		payload = unsafe.Slice((*byte)(data), int(length))
	}
	return C.int(fn(hdr, payload, uint64(attrs)))
}
