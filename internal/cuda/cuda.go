//go:build cuda && cgo

package cuda

import "unsafe"

/*
#cgo LDFLAGS: -lcuda
#include <cuda.h>
*/
import "C"

// Available reports whether the package was built with CUDA driver support.
func Available() bool { return true }

// Ctx is a CUDA driver context handle.
type Ctx struct {
	ctx C.CUcontext
}

// Valid reports whether the handle refers to a real context.
func (c Ctx) Valid() bool { return c.ctx != nil }

// Same reports whether two handles refer to the same driver context.
func (c Ctx) Same(other Ctx) bool { return c.ctx == other.ctx }

// QueryAddr resolves the memory kind, owning device and owning context of a
// pointer. A pointer the CUDA driver has never seen (plain host memory) reports
// isDev=false with no error.
func QueryAddr(addr unsafe.Pointer) (isDev bool, dev int, ctx Ctx, err error) {
	var memType C.CUmemorytype = C.CU_MEMORYTYPE_HOST
	var isManaged C.uint
	var cuDev C.CUdevice
	var cuCtx C.CUcontext

	attrTypes := [4]C.CUpointer_attribute{
		C.CU_POINTER_ATTRIBUTE_MEMORY_TYPE,
		C.CU_POINTER_ATTRIBUTE_IS_MANAGED,
		C.CU_POINTER_ATTRIBUTE_DEVICE_ORDINAL,
		C.CU_POINTER_ATTRIBUTE_CONTEXT,
	}
	attrData := [4]unsafe.Pointer{
		unsafe.Pointer(&memType),
		unsafe.Pointer(&isManaged),
		unsafe.Pointer(&cuDev),
		unsafe.Pointer(&cuCtx),
	}

	result := C.cuPointerGetAttributes(4, &attrTypes[0], &attrData[0], C.CUdeviceptr(uintptr(addr)))
	if result != C.CUDA_SUCCESS {
		return false, -1, Ctx{}, Error(int(result))
	}
	return memType == C.CU_MEMORYTYPE_DEVICE, int(cuDev), Ctx{ctx: cuCtx}, nil
}

// SetCurrent binds the context to the calling thread.
func SetCurrent(ctx Ctx) error {
	if !ctx.Valid() {
		return nil
	}
	if result := C.cuCtxSetCurrent(ctx.ctx); result != C.CUDA_SUCCESS {
		return Error(int(result))
	}
	return nil
}
