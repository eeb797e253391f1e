//go:build cgo

package capi

import "unsafe"

/*
#cgo pkg-config: ucx
#include "nixlreq.h"
*/
import "C"

// Mem wraps a ucp_mem_h registration of a local address range.
type Mem struct {
	ptr  C.ucp_mem_h
	base unsafe.Pointer
	size uintptr
}

// Rkey wraps a remote key imported against one endpoint.
type Rkey struct {
	ptr C.ucp_rkey_h
}

// RegisterMemory registers [addr, addr+size) with the context.
func RegisterMemory(ctx *Context, addr unsafe.Pointer, size uintptr) (*Mem, error) {
	if ctx == nil || ctx.ptr == nil {
		return nil, ErrInvalidParam.WithOp("ucp_mem_map")
	}
	if addr == nil || size == 0 {
		return nil, ErrInvalidParam.WithOp("ucp_mem_map")
	}

	var params C.ucp_mem_map_params_t
	params.field_mask = C.UCP_MEM_MAP_PARAM_FIELD_ADDRESS |
		C.UCP_MEM_MAP_PARAM_FIELD_LENGTH
	params.address = addr
	params.length = C.size_t(size)

	var memh C.ucp_mem_h
	if status := C.ucp_mem_map(ctx.ptr, &params, &memh); status != C.UCS_OK {
		return nil, Errno(status).WithOp("ucp_mem_map")
	}
	return &Mem{ptr: memh, base: addr, size: size}, nil
}

// DeregisterMemory releases the registration.
func DeregisterMemory(ctx *Context, mem *Mem) {
	if ctx == nil || ctx.ptr == nil || mem == nil || mem.ptr == nil {
		return
	}
	C.ucp_mem_unmap(ctx.ptr, mem.ptr)
	mem.ptr = nil
	mem.base = nil
	mem.size = 0
}

// Base returns the registered base address.
func (m *Mem) Base() unsafe.Pointer {
	if m == nil {
		return nil
	}
	return m.base
}

// Size returns the registered length in bytes.
func (m *Mem) Size() uintptr {
	if m == nil {
		return 0
	}
	return m.size
}

// PackRkey packs the registration's remote key into a Go byte blob suitable
// for advertisement.
func PackRkey(ctx *Context, mem *Mem) ([]byte, error) {
	if ctx == nil || ctx.ptr == nil || mem == nil || mem.ptr == nil {
		return nil, ErrInvalidParam.WithOp("ucp_rkey_pack")
	}

	var buf unsafe.Pointer
	var size C.size_t
	if status := C.ucp_rkey_pack(ctx.ptr, mem.ptr, &buf, &size); status != C.UCS_OK {
		return nil, Errno(status).WithOp("ucp_rkey_pack")
	}
	out := C.GoBytes(buf, C.int(size))
	C.ucp_rkey_buffer_release(buf)
	return out, nil
}

// ImportRkey unpacks a packed rkey blob against the endpoint.
func ImportRkey(ep *Ep, blob []byte) (*Rkey, error) {
	if ep == nil || ep.ptr == nil || len(blob) == 0 {
		return nil, ErrInvalidParam.WithOp("ucp_ep_rkey_unpack")
	}

	var rkey C.ucp_rkey_h
	status := C.ucp_ep_rkey_unpack(ep.ptr, unsafe.Pointer(&blob[0]), &rkey)
	if status != C.UCS_OK {
		return nil, Errno(status).WithOp("ucp_ep_rkey_unpack")
	}
	return &Rkey{ptr: rkey}, nil
}

// DestroyRkey releases an imported rkey.
func DestroyRkey(rkey *Rkey) {
	if rkey == nil || rkey.ptr == nil {
		return
	}
	C.ucp_rkey_destroy(rkey.ptr)
	rkey.ptr = nil
}
