package ucx

import (
	"unsafe"

	"github.com/w1ldptr/nixl/internal/capi"
)

// AllocBytes allocates size bytes of C-managed memory. Buffers handed to
// SendAm must come from here (or CloneToC) so the fabric may touch them
// after the posting call returns.
func AllocBytes(size uintptr) unsafe.Pointer { return capi.AllocBytes(size) }

// FreeBytes releases memory obtained from AllocBytes or CloneToC.
func FreeBytes(ptr unsafe.Pointer) { capi.FreeBytes(ptr) }

// Memcpy copies n bytes between C-managed buffers.
func Memcpy(dst, src unsafe.Pointer, n uintptr) { capi.Memcpy(dst, src, n) }

// CloneToC copies a Go byte slice into C-managed memory.
func CloneToC(buf []byte) unsafe.Pointer { return capi.CloneToC(buf) }
