//go:build !cuda

package backend

import (
	"testing"
	"unsafe"
)

func ptrOf(buf []byte) unsafe.Pointer {
	return unsafe.Pointer(&buf[0])
}

func TestVramDisabledIsInert(t *testing.T) {
	var v vramState
	v.init(false)

	restart, err := v.update(nil, 0)
	if err != nil || restart {
		t.Fatalf("disabled helper must do nothing: restart=%v err=%v", restart, err)
	}
	if err := v.apply(); err != nil {
		t.Fatalf("disabled apply must be a no-op: %v", err)
	}
}

func TestVramRejectsUnknownDevice(t *testing.T) {
	var v vramState
	v.init(true)

	if _, err := v.update(nil, -1); err == nil {
		t.Fatalf("missing device id must be rejected")
	}
}

func TestVramHostPointerPassesThrough(t *testing.T) {
	var v vramState
	v.init(true)

	// Without CUDA every pointer reads as host memory: no binding, no
	// restart, no error.
	buf := make([]byte, 8)
	restart, err := v.update(ptrOf(buf), 0)
	if err != nil {
		t.Fatalf("host pointer must pass through: %v", err)
	}
	if restart {
		t.Fatalf("host pointer must not request a restart")
	}
	if v.hasCtx {
		t.Fatalf("host pointer must not bind a context")
	}
}
