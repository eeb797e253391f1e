package backend

import (
	"runtime"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/w1ldptr/nixl/ucx"
)

func newTestEngine(t *testing.T, agent string, numWorkers int, progTh bool) *Engine {
	t.Helper()
	e, err := New(Config{
		AgentName:            agent,
		NumWorkers:           numWorkers,
		EnableProgressThread: progTh,
		ProgressDelay:        10 * time.Millisecond,
	})
	if err != nil {
		t.Skipf("fabric unavailable: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

// allocBuf returns a C-allocated buffer filled with the given byte, plus a
// Go view of it. Registered memory must not move under the fabric.
func allocBuf(t *testing.T, size int, fill byte) (uintptr, []byte) {
	t.Helper()
	ptr := ucx.AllocBytes(uintptr(size))
	require.NotNil(t, ptr)
	t.Cleanup(func() { ucx.FreeBytes(ptr) })
	view := unsafe.Slice((*byte)(ptr), size)
	for i := range view {
		view[i] = fill
	}
	return uintptr(ptr), view
}

func registerBuf(t *testing.T, e *Engine, addr uintptr, size int) *LocalMD {
	t.Helper()
	md, status := e.RegisterMem(MemDesc{Addr: addr, Len: uintptr(size)}, KindHost)
	require.Equal(t, OK, status)
	t.Cleanup(func() { e.DeregisterMem(md) })
	return md
}

func connectPair(t *testing.T, a, b *Engine) {
	t.Helper()
	require.Equal(t, OK, a.LoadRemoteConnInfo(b.AgentName(), b.ConnInfo()))
	require.Equal(t, OK, b.LoadRemoteConnInfo(a.AgentName(), a.ConnInfo()))
	require.Equal(t, OK, a.Connect(b.AgentName()))
}

// loadTarget registers size bytes on owner and imports the advertisement on
// initiator.
func loadTarget(t *testing.T, initiator, owner *Engine, addr uintptr, size int) *RemoteMD {
	t.Helper()
	local := registerBuf(t, owner, addr, size)
	blob, status := owner.PublicData(local)
	require.Equal(t, OK, status)
	remote, status := initiator.LoadRemoteMD(blob, KindHost, owner.AgentName())
	require.Equal(t, OK, status)
	t.Cleanup(func() { initiator.UnloadMD(remote) })
	return remote
}

func waitXfer(t *testing.T, e *Engine, h *XferHandle, peers ...*Engine) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for {
		status := e.CheckXfer(h)
		if status == OK {
			return
		}
		require.Equal(t, InProgress, status)
		require.False(t, time.Now().After(deadline), "transfer did not complete")
		e.Progress()
		for _, p := range peers {
			p.Progress()
		}
	}
}

func postAndWait(t *testing.T, e *Engine, op XferOp, local []LocalDesc, remote []RemoteDesc,
	peer string, opts *XferOpts, peers ...*Engine) {
	t.Helper()
	h, status := e.PrepXfer(op, local, remote, peer, opts)
	require.Equal(t, OK, status)
	status = e.PostXfer(op, local, remote, peer, h, opts)
	require.Contains(t, []Status{OK, InProgress}, status)
	if status == InProgress {
		waitXfer(t, e, h, peers...)
	}
	require.Equal(t, OK, e.ReleaseReqH(h))
}

func TestLoopbackWriteRead(t *testing.T) {
	a := newTestEngine(t, "A", 2, false)
	b := newTestEngine(t, "B", 2, false)
	connectPair(t, a, b)

	const size = 4096
	srcAddr, src := allocBuf(t, size, 0xDA)
	dstAddr, dst := allocBuf(t, size, 0x00)
	chkAddr, chk := allocBuf(t, size, 0x00)

	srcMD := registerBuf(t, a, srcAddr, size)
	chkMD := registerBuf(t, a, chkAddr, size)
	target := loadTarget(t, a, b, dstAddr, size)

	postAndWait(t, a, XferWrite,
		[]LocalDesc{{Addr: srcAddr, Len: size, MD: srcMD}},
		[]RemoteDesc{{Addr: dstAddr, Len: size, MD: target}},
		b.AgentName(), nil, b)
	for i := range dst {
		require.Equalf(t, byte(0xDA), dst[i], "byte %d after write", i)
	}

	postAndWait(t, a, XferRead,
		[]LocalDesc{{Addr: chkAddr, Len: size, MD: chkMD}},
		[]RemoteDesc{{Addr: dstAddr, Len: size, MD: target}},
		b.AgentName(), nil, b)
	require.Equal(t, src, chk)
}

func TestSplitWrite(t *testing.T) {
	a := newTestEngine(t, "A", 2, false)
	b := newTestEngine(t, "B", 2, false)
	connectPair(t, a, b)

	const size = 4096
	const half = size / 2
	srcAddr, _ := allocBuf(t, half, 0xDA)
	dstAddr, dst := allocBuf(t, size, 0xBB)

	srcMD := registerBuf(t, a, srcAddr, half)
	target := loadTarget(t, a, b, dstAddr, size)

	postAndWait(t, a, XferWrite,
		[]LocalDesc{{Addr: srcAddr, Len: half, MD: srcMD}},
		[]RemoteDesc{{Addr: dstAddr, Len: half, MD: target}},
		b.AgentName(), nil, b)

	for i := 0; i < half; i++ {
		require.Equalf(t, byte(0xDA), dst[i], "byte %d in written half", i)
	}
	for i := half; i < size; i++ {
		require.Equalf(t, byte(0xBB), dst[i], "byte %d in untouched half", i)
	}
}

func TestNotifyOnCompletion(t *testing.T) {
	a := newTestEngine(t, "A", 2, false)
	b := newTestEngine(t, "B", 2, false)
	connectPair(t, a, b)
	// B also runs a connect-check toward A.
	require.Equal(t, OK, b.Connect(a.AgentName()))

	const size = 256
	srcAddr, _ := allocBuf(t, size, 0xDA)
	dstAddr, _ := allocBuf(t, size, 0x00)
	srcMD := registerBuf(t, a, srcAddr, size)
	target := loadTarget(t, a, b, dstAddr, size)

	postAndWait(t, a, XferWrite,
		[]LocalDesc{{Addr: srcAddr, Len: size, MD: srcMD}},
		[]RemoteDesc{{Addr: dstAddr, Len: size, MD: target}},
		b.AgentName(), &XferOpts{HasNotif: true, NotifMsg: "done-42"}, b)

	notifs := drainNotifs(t, b, a)
	require.Equal(t, []Notification{{Agent: "A", Msg: "done-42"}}, notifs)
}

func drainNotifs(t *testing.T, receiver *Engine, sender *Engine) []Notification {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for {
		var out []Notification
		require.Equal(t, OK, receiver.GetNotifs(&out))
		if len(out) > 0 {
			return out
		}
		require.False(t, time.Now().After(deadline), "notification never arrived")
		sender.Progress()
	}
}

func TestNotificationEcho(t *testing.T) {
	a := newTestEngine(t, "A", 2, false)
	b := newTestEngine(t, "B", 2, false)
	connectPair(t, a, b)
	require.Equal(t, OK, b.Connect(a.AgentName()))

	require.Equal(t, OK, a.GenNotif(b.AgentName(), "ping"))
	notifs := drainNotifs(t, b, a)
	require.Equal(t, []Notification{{Agent: "A", Msg: "ping"}}, notifs)
}

func TestLoopbackSameEngine(t *testing.T) {
	a := newTestEngine(t, "A", 2, false)

	require.Equal(t, OK, a.Connect("A"))
	require.Equal(t, OK, a.CheckConn("A"))

	const size = 1024
	srcAddr, _ := allocBuf(t, size, 0x5A)
	dstAddr, dst := allocBuf(t, size, 0x00)
	srcMD := registerBuf(t, a, srcAddr, size)

	dstMD := registerBuf(t, a, dstAddr, size)
	target, status := a.LoadLocalMD(dstMD)
	require.Equal(t, OK, status)
	t.Cleanup(func() { a.UnloadMD(target) })

	postAndWait(t, a, XferWrite,
		[]LocalDesc{{Addr: srcAddr, Len: size, MD: srcMD}},
		[]RemoteDesc{{Addr: dstAddr, Len: size, MD: target}},
		"A", nil)
	for i := range dst {
		require.Equalf(t, byte(0x5A), dst[i], "byte %d", i)
	}
}

func TestPostXferShapeMismatch(t *testing.T) {
	a := newTestEngine(t, "A", 2, false)
	b := newTestEngine(t, "B", 2, false)
	connectPair(t, a, b)

	const size = 128
	srcAddr, _ := allocBuf(t, size, 0x01)
	dstAddr, _ := allocBuf(t, size, 0x00)
	srcMD := registerBuf(t, a, srcAddr, size)
	target := loadTarget(t, a, b, dstAddr, size)

	local := []LocalDesc{
		{Addr: srcAddr, Len: size / 2, MD: srcMD},
		{Addr: srcAddr + size/2, Len: size / 2, MD: srcMD},
	}
	remote := []RemoteDesc{{Addr: dstAddr, Len: size / 2, MD: target}}

	h, status := a.PrepXfer(XferWrite, local, remote, b.AgentName(), nil)
	require.Equal(t, OK, status)
	require.Equal(t, ErrInvalidParam, a.PostXfer(XferWrite, local, remote, b.AgentName(), h, nil))
	// No fabric work was created: the chain drains as already-complete.
	require.Equal(t, OK, a.CheckXfer(h))
	require.Equal(t, OK, a.ReleaseReqH(h))
}

func TestPostXferLengthMismatch(t *testing.T) {
	a := newTestEngine(t, "A", 2, false)
	b := newTestEngine(t, "B", 2, false)
	connectPair(t, a, b)

	const size = 128
	srcAddr, _ := allocBuf(t, size, 0x01)
	dstAddr, _ := allocBuf(t, size, 0x00)
	srcMD := registerBuf(t, a, srcAddr, size)
	target := loadTarget(t, a, b, dstAddr, size)

	local := []LocalDesc{{Addr: srcAddr, Len: size, MD: srcMD}}
	remote := []RemoteDesc{{Addr: dstAddr, Len: size / 2, MD: target}}

	h, status := a.PrepXfer(XferWrite, local, remote, b.AgentName(), nil)
	require.Equal(t, OK, status)
	require.Equal(t, ErrInvalidParam, a.PostXfer(XferWrite, local, remote, b.AgentName(), h, nil))
	require.Equal(t, OK, a.ReleaseReqH(h))
}

func TestZeroLengthXferCompletesInline(t *testing.T) {
	a := newTestEngine(t, "A", 1, false)
	b := newTestEngine(t, "B", 1, false)
	connectPair(t, a, b)

	const size = 64
	srcAddr, _ := allocBuf(t, size, 0x01)
	dstAddr, _ := allocBuf(t, size, 0x00)
	srcMD := registerBuf(t, a, srcAddr, size)
	target := loadTarget(t, a, b, dstAddr, size)

	postAndWait(t, a, XferWrite,
		[]LocalDesc{{Addr: srcAddr, Len: 0, MD: srcMD}},
		[]RemoteDesc{{Addr: dstAddr, Len: 0, MD: target}},
		b.AgentName(), nil, b)
}

func TestDuplicatePeerLoad(t *testing.T) {
	a := newTestEngine(t, "A", 2, false)
	b := newTestEngine(t, "B", 2, false)

	require.Equal(t, OK, a.LoadRemoteConnInfo(b.AgentName(), b.ConnInfo()))
	require.Equal(t, ErrInvalidParam, a.LoadRemoteConnInfo(b.AgentName(), b.ConnInfo()))
}

func TestConnectUnknownPeer(t *testing.T) {
	a := newTestEngine(t, "A", 1, false)
	require.Equal(t, ErrNotFound, a.Connect("nobody"))
	require.Equal(t, ErrNotFound, a.Disconnect("nobody"))
	require.Equal(t, ErrNotFound, a.CheckConn("nobody"))
}

func TestDisconnectRemovesPeer(t *testing.T) {
	a := newTestEngine(t, "A", 2, false)
	b := newTestEngine(t, "B", 2, false)
	connectPair(t, a, b)

	require.Equal(t, OK, a.Disconnect(b.AgentName()))
	require.Equal(t, ErrNotFound, a.CheckConn(b.AgentName()))
	// The receiver side defers teardown to its own Disconnect.
	b.Progress()
}

func TestRemoteMDUnknownPeer(t *testing.T) {
	a := newTestEngine(t, "A", 1, false)
	_, status := a.LoadRemoteMD([]byte{1, 2, 3}, KindHost, "nobody")
	require.Equal(t, ErrNotFound, status)
}

func TestRemoteMDRkeyCountMatchesWorkers(t *testing.T) {
	a := newTestEngine(t, "A", 3, false)
	b := newTestEngine(t, "B", 3, false)
	connectPair(t, a, b)

	const size = 64
	dstAddr, _ := allocBuf(t, size, 0x00)
	target := loadTarget(t, a, b, dstAddr, size)
	require.Len(t, target.rkeys, 3)
	require.Len(t, target.conn.eps, 3)
}

func TestWorkerShardingDeterministic(t *testing.T) {
	a := newTestEngine(t, "A", 4, false)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	first := a.workerID()
	for i := 0; i < 16; i++ {
		require.Equal(t, first, a.workerID())
	}
	require.GreaterOrEqual(t, first, 0)
	require.Less(t, first, 4)

	h, status := a.PrepXfer(XferWrite, nil, nil, "A", nil)
	require.Equal(t, OK, status)
	require.Equal(t, first, h.WorkerID())
	require.Equal(t, OK, a.ReleaseReqH(h))
}

func TestProgressThreadRestart(t *testing.T) {
	a := newTestEngine(t, "A", 2, true)
	require.Equal(t, uint64(1), a.ProgressThreadStarts())

	a.progressThreadRestart()
	require.Equal(t, uint64(2), a.ProgressThreadStarts())

	// The engine stays usable after the restart.
	require.Equal(t, OK, a.Connect("A"))
}

func TestGetNotifsNonEmptyOutput(t *testing.T) {
	a := newTestEngine(t, "A", 1, false)
	out := []Notification{{Agent: "x", Msg: "y"}}
	require.Equal(t, ErrInvalidParam, a.GetNotifs(&out))
}
