//go:build !cuda || !cgo

package cuda

import "unsafe"

// Available reports whether the package was built with CUDA driver support.
func Available() bool { return false }

// Ctx is a CUDA driver context handle. Without CUDA it never holds one.
type Ctx struct{}

// Valid reports whether the handle refers to a real context.
func (c Ctx) Valid() bool { return false }

// Same reports whether two handles refer to the same driver context.
func (c Ctx) Same(other Ctx) bool { return true }

// QueryAddr resolves the memory kind of a pointer. Without CUDA every
// pointer is host memory.
func QueryAddr(addr unsafe.Pointer) (isDev bool, dev int, ctx Ctx, err error) {
	return false, -1, Ctx{}, nil
}

// SetCurrent binds the context to the calling thread. No-op without CUDA.
func SetCurrent(ctx Ctx) error { return nil }
