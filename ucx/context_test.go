package ucx

import "testing"

func setupContext(t *testing.T, cfg ContextConfig) *Context {
	t.Helper()
	ctx, err := NewContext(cfg)
	if err != nil {
		t.Skipf("ucx unavailable: %v", err)
	}
	t.Cleanup(ctx.Close)
	return ctx
}

func TestWorkerAddressRoundTrip(t *testing.T) {
	ctx := setupContext(t, ContextConfig{MTLevel: MTWorker})

	w, err := NewWorker(ctx)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	t.Cleanup(w.Close)

	addr, err := w.Address()
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	if len(addr) == 0 {
		t.Fatalf("address blob must not be empty")
	}

	ep, err := w.Connect(addr)
	if err != nil {
		t.Fatalf("self connect: %v", err)
	}
	if err := w.DisconnectNB(ep); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	for w.Progress() != 0 {
	}
}

func TestRegisterAndPackRkey(t *testing.T) {
	ctx := setupContext(t, ContextConfig{MTLevel: MTWorker})

	buf := AllocBytes(4096)
	if buf == nil {
		t.Fatalf("allocation failed")
	}
	t.Cleanup(func() { FreeBytes(buf) })

	mem, err := RegisterMemory(ctx, buf, 4096)
	if err != nil {
		t.Skipf("memory registration unsupported: %v", err)
	}
	t.Cleanup(func() { DeregisterMemory(ctx, mem) })

	if mem.Base() != buf || mem.Size() != 4096 {
		t.Fatalf("registration does not reflect the request")
	}

	blob, err := PackRkey(ctx, mem)
	if err != nil {
		t.Fatalf("PackRkey: %v", err)
	}
	if len(blob) == 0 {
		t.Fatalf("packed rkey must not be empty")
	}
}

func TestZeroLengthOpsCompleteInline(t *testing.T) {
	ctx := setupContext(t, ContextConfig{MTLevel: MTWorker})

	w, err := NewWorker(ctx)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	t.Cleanup(w.Close)

	addr, err := w.Address()
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	ep, err := w.Connect(addr)
	if err != nil {
		t.Fatalf("self connect: %v", err)
	}
	t.Cleanup(func() { _ = w.DisconnectNB(ep) })

	req, err := w.Read(ep, 0, nil, nil, nil, 0)
	if err != nil || req != nil {
		t.Fatalf("zero-length read must complete inline: req=%v err=%v", req, err)
	}
	req, err = w.Write(ep, nil, nil, 0, nil, 0)
	if err != nil || req != nil {
		t.Fatalf("zero-length write must complete inline: req=%v err=%v", req, err)
	}
}
