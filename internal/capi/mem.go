//go:build cgo

package capi

import "unsafe"

/*
#cgo pkg-config: ucx
#include <stdlib.h>
#include <string.h>
*/
import "C"

// AllocBytes allocates size bytes of C-managed memory.
func AllocBytes(size uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}
	return C.malloc(C.size_t(size))
}

// FreeBytes releases memory obtained from AllocBytes.
func FreeBytes(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	C.free(ptr)
}

// Memcpy copies n bytes from src to dst.
func Memcpy(dst, src unsafe.Pointer, n uintptr) {
	if n == 0 || dst == nil || src == nil {
		return
	}
	C.memcpy(dst, src, C.size_t(n))
}

// CloneToC copies a Go byte slice into C-managed memory. The caller owns the
// returned pointer and must release it with FreeBytes.
func CloneToC(buf []byte) unsafe.Pointer {
	if len(buf) == 0 {
		return nil
	}
	ptr := C.malloc(C.size_t(len(buf)))
	if ptr == nil {
		return nil
	}
	C.memcpy(ptr, unsafe.Pointer(&buf[0]), C.size_t(len(buf)))
	return ptr
}
