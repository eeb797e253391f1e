//go:build cgo

package capi

import (
	"strings"
	"unsafe"
)

/*
#cgo pkg-config: ucx
#include <stdlib.h>
#include "nixlreq.h"
*/
import "C"

// MTLevel selects how the UCP context may be shared between threads.
type MTLevel int

const (
	// MTSingle permits a single thread to drive the context.
	MTSingle MTLevel = iota
	// MTContext permits multiple threads to share one worker.
	MTContext
	// MTWorker permits distinct threads to drive distinct workers.
	MTWorker
)

// Context wraps a ucp_context_h together with the request-tail layout it was
// initialized with.
type Context struct {
	ptr      C.ucp_context_h
	mtLevel  MTLevel
	eventing bool
}

// ContextParams controls ucp context creation.
type ContextParams struct {
	// Devices restricts UCX to the named network devices. Empty means the
	// library default selection.
	Devices []string
	// MTLevel is the requested threading level.
	MTLevel MTLevel
	// Eventing requests wakeup support (event-fd arming) on workers.
	Eventing bool
}

// NewContext initializes a ucp context. The request tail (nixl_req_t) and its
// in-place init/cleanup callbacks are installed here; every request pointer
// returned by non-blocking operations addresses that tail.
func NewContext(p ContextParams) (*Context, error) {
	var config *C.ucp_config_t
	if status := C.ucp_config_read(nil, nil, &config); status != C.UCS_OK {
		return nil, Errno(status).WithOp("ucp_config_read")
	}
	defer C.ucp_config_release(config)

	if len(p.Devices) > 0 {
		name := C.CString("NET_DEVICES")
		value := C.CString(strings.Join(p.Devices, ","))
		status := C.ucp_config_modify(config, name, value)
		C.free(unsafe.Pointer(name))
		C.free(unsafe.Pointer(value))
		if status != C.UCS_OK {
			return nil, Errno(status).WithOp("ucp_config_modify")
		}
	}

	var params C.ucp_params_t
	params.field_mask = C.UCP_PARAM_FIELD_FEATURES |
		C.UCP_PARAM_FIELD_REQUEST_SIZE |
		C.UCP_PARAM_FIELD_REQUEST_INIT |
		C.UCP_PARAM_FIELD_REQUEST_CLEANUP |
		C.UCP_PARAM_FIELD_MT_WORKERS_SHARED
	params.features = C.UCP_FEATURE_RMA | C.UCP_FEATURE_AM
	if p.Eventing {
		params.features |= C.UCP_FEATURE_WAKEUP
	}
	params.request_size = C.size_t(C.sizeof_nixl_req_t)
	params.request_init = C.ucp_request_init_callback_t(C.nixl_req_init)
	params.request_cleanup = C.ucp_request_cleanup_callback_t(C.nixl_req_cleanup)
	if p.MTLevel == MTSingle {
		params.mt_workers_shared = 0
	} else {
		params.mt_workers_shared = 1
	}

	var ctx C.ucp_context_h
	if status := C.ucp_init(&params, config, &ctx); status != C.UCS_OK {
		return nil, Errno(status).WithOp("ucp_init")
	}
	return &Context{ptr: ctx, mtLevel: p.MTLevel, eventing: p.Eventing}, nil
}

// MTLevelSupported probes whether the library can honour the threading level
// by initializing and destroying a throwaway context.
func MTLevelSupported(level MTLevel) bool {
	ctx, err := NewContext(ContextParams{MTLevel: level})
	if err != nil {
		return false
	}
	ctx.Close()
	return true
}

// Eventing reports whether the context was created with wakeup support.
func (c *Context) Eventing() bool {
	return c != nil && c.eventing
}

// Close destroys the ucp context. All workers, endpoints, memory handles and
// rkeys derived from it must already be released.
func (c *Context) Close() {
	if c == nil || c.ptr == nil {
		return
	}
	C.ucp_cleanup(c.ptr)
	c.ptr = nil
}
