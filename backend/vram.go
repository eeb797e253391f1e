package backend

import (
	"errors"
	"unsafe"

	"github.com/w1ldptr/nixl/internal/cuda"
)

// vramState captures at most one device context per engine. The first
// device-resident registration binds {device id, context}; later ones must
// match both. The engine, not this helper, decides when to restart the
// progress thread — the helper only reports that a restart is required.
type vramState struct {
	enabled bool
	devID   int
	ctx     cuda.Ctx
	hasCtx  bool
}

var (
	errDevIDUnknown  = errors.New("backend: device registration without device id")
	errDevIDMismatch = errors.New("backend: address does not belong to the claimed device")
	errDevCtxChanged = errors.New("backend: device context differs from the captured one")
)

func (v *vramState) init(enabled bool) {
	v.enabled = enabled
	v.devID = -1
	v.hasCtx = false
}

// update inspects a device registration's address. Returns restart=true
// exactly once: when the first device-resident pointer binds the context.
func (v *vramState) update(addr unsafe.Pointer, expectedDev int) (restart bool, err error) {
	if !v.enabled {
		return false, nil
	}
	if expectedDev < 0 {
		return false, errDevIDUnknown
	}
	if v.devID != -1 && expectedDev != v.devID {
		return false, errDevIDMismatch
	}

	isDev, dev, ctx, err := cuda.QueryAddr(addr)
	if err != nil {
		return false, err
	}
	if !isDev {
		return false, nil
	}
	if dev != expectedDev {
		return false, errDevIDMismatch
	}

	if v.hasCtx {
		if !v.ctx.Same(ctx) {
			return false, errDevCtxChanged
		}
		return false, nil
	}

	v.ctx = ctx
	v.hasCtx = true
	v.devID = expectedDev
	return true, nil
}

// apply binds the captured context to the calling thread. No-op until a
// context has been captured.
func (v *vramState) apply() error {
	if !v.enabled || !v.hasCtx {
		return nil
	}
	return cuda.SetCurrent(v.ctx)
}

func (v *vramState) fini() {
	v.hasCtx = false
	v.devID = -1
}
