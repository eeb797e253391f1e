package ucx

import (
	"unsafe"

	"github.com/w1ldptr/nixl/internal/capi"
)

// Mem is a local memory registration.
type Mem struct {
	c *capi.Mem
}

// Rkey is a remote key imported against one endpoint, authorizing one-sided
// access to the peer region it was packed from.
type Rkey struct {
	c *capi.Rkey
}

// RegisterMemory registers [addr, addr+size) with the context. The caller
// keeps ownership of the memory and must keep it valid until deregistration.
func RegisterMemory(ctx *Context, addr unsafe.Pointer, size uintptr) (*Mem, error) {
	if ctx == nil || ctx.c == nil {
		return nil, ErrInvalidHandle{"context"}
	}
	c, err := capi.RegisterMemory(ctx.c, addr, size)
	if err != nil {
		return nil, err
	}
	return &Mem{c: c}, nil
}

// DeregisterMemory releases the registration.
func DeregisterMemory(ctx *Context, mem *Mem) {
	if ctx == nil || ctx.c == nil || mem == nil || mem.c == nil {
		return
	}
	capi.DeregisterMemory(ctx.c, mem.c)
	mem.c = nil
}

// Base returns the registered base address.
func (m *Mem) Base() unsafe.Pointer {
	if m == nil {
		return nil
	}
	return m.c.Base()
}

// Size returns the registered length in bytes.
func (m *Mem) Size() uintptr {
	if m == nil {
		return 0
	}
	return m.c.Size()
}

// PackRkey packs the registration's remote key into an advertisable blob.
func PackRkey(ctx *Context, mem *Mem) ([]byte, error) {
	if ctx == nil || ctx.c == nil {
		return nil, ErrInvalidHandle{"context"}
	}
	if mem == nil || mem.c == nil {
		return nil, ErrInvalidHandle{"memory"}
	}
	return capi.PackRkey(ctx.c, mem.c)
}

// ImportRkey unpacks a packed rkey blob against the endpoint.
func ImportRkey(ep *Ep, blob []byte) (*Rkey, error) {
	if ep == nil || ep.c == nil {
		return nil, ErrInvalidHandle{"endpoint"}
	}
	c, err := capi.ImportRkey(ep.c, blob)
	if err != nil {
		return nil, err
	}
	return &Rkey{c: c}, nil
}

// DestroyRkey releases an imported rkey.
func DestroyRkey(rkey *Rkey) {
	if rkey == nil || rkey.c == nil {
		return
	}
	capi.DestroyRkey(rkey.c)
	rkey.c = nil
}

func memHandle(m *Mem) *capi.Mem {
	if m == nil {
		return nil
	}
	return m.c
}

func rkeyHandle(r *Rkey) *capi.Rkey {
	if r == nil {
		return nil
	}
	return r.c
}
