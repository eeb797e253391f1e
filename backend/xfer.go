package backend

import (
	"unsafe"

	"github.com/w1ldptr/nixl/ucx"
)

// XferOp selects the one-sided operation of a transfer.
type XferOp int

const (
	// XferRead pulls remote bytes into local memory.
	XferRead XferOp = iota
	// XferWrite pushes local bytes into remote memory.
	XferWrite
)

func (op XferOp) String() string {
	switch op {
	case XferRead:
		return "read"
	case XferWrite:
		return "write"
	default:
		return "unknown"
	}
}

// LocalDesc pairs a local byte range with its registration.
type LocalDesc struct {
	Addr uintptr
	Len  uintptr
	MD   *LocalMD
}

// RemoteDesc pairs a remote byte range with its imported record.
type RemoteDesc struct {
	Addr uintptr
	Len  uintptr
	MD   *RemoteMD
}

// XferOpts carries optional per-transfer arguments.
type XferOpts struct {
	// HasNotif requests a completion notification carrying NotifMsg. The
	// notification is not observable remotely before every preceding
	// read/write has reached the remote visibility domain.
	HasNotif bool
	NotifMsg string
}

// XferHandle tracks the tokens of one posted transfer. Every token on the
// handle was produced by its bound worker; mixing workers within a handle
// is a bug.
type XferHandle struct {
	eng      *Engine
	workerID int
	chain    reqChain
}

// WorkerID returns the worker the handle is bound to.
func (h *XferHandle) WorkerID() int {
	return h.workerID
}

// PrepXfer allocates a transfer handle bound to the calling thread's worker.
// All posts on the handle use that worker only.
func (e *Engine) PrepXfer(op XferOp, local []LocalDesc, remote []RemoteDesc,
	remoteAgent string, opts *XferOpts) (*XferHandle, Status) {
	return &XferHandle{
		eng:      e,
		workerID: e.workerID(),
		chain:    newReqChain(),
	}, OK
}

// retHelper folds one posted step into the handle: pending tokens join the
// chain, inline completions need nothing, and a failure drains everything
// already posted.
func (h *XferHandle) retHelper(req ucx.Req, err error) Status {
	if err != nil {
		h.chain.release(h.eng.worker(h.workerID))
		return ErrBackend
	}
	if req != nil {
		h.chain.append(req)
	}
	return OK
}

// PostXfer issues one read/write per descriptor pair on the handle's
// worker, appends an endpoint flush, and optionally appends a completion
// notification. Returns the chain's aggregate status.
func (e *Engine) PostXfer(op XferOp, local []LocalDesc, remote []RemoteDesc,
	remoteAgent string, handle *XferHandle, opts *XferOpts) Status {
	if handle == nil || handle.eng != e {
		return ErrInvalidParam
	}
	if len(local) != len(remote) || len(local) == 0 {
		return ErrInvalidParam
	}

	workerID := handle.workerID
	w := e.worker(workerID)

	for i := range local {
		l := &local[i]
		r := &remote[i]
		if l.Len != r.Len {
			return ErrInvalidParam
		}
		if l.MD == nil || r.MD == nil || len(r.MD.rkeys) != len(e.workers) {
			return ErrInvalidParam
		}

		var req ucx.Req
		var err error
		switch op {
		case XferRead:
			req, err = w.Read(r.MD.conn.eps[workerID], uint64(r.Addr), r.MD.rkeys[workerID],
				unsafe.Pointer(l.Addr), l.MD.mem, l.Len)
		case XferWrite:
			req, err = w.Write(r.MD.conn.eps[workerID], unsafe.Pointer(l.Addr), l.MD.mem,
				uint64(r.Addr), r.MD.rkeys[workerID], l.Len)
		default:
			return ErrInvalidParam
		}
		if s := handle.retHelper(req, err); s != OK {
			e.metrics.TransferFailed(op.String(), err, e.metricAttrs())
			return s
		}
	}

	rmd := remote[0].MD
	req, err := w.FlushEp(rmd.conn.eps[workerID])
	if s := handle.retHelper(req, err); s != OK {
		e.metrics.TransferFailed(op.String(), err, e.metricAttrs())
		return s
	}

	if opts != nil && opts.HasNotif {
		req, s := e.notifSendPriv(remoteAgent, opts.NotifMsg, workerID)
		switch s {
		case InProgress:
			handle.chain.append(req)
		case OK:
		default:
			handle.chain.release(w)
			e.metrics.TransferFailed(op.String(), s, e.metricAttrs())
			return ErrBackend
		}
	}

	e.metrics.TransferPosted(op.String(), e.metricAttrs())
	return handle.chain.status(w)
}

// CheckXfer polls the handle's chain. A terminal error leaves the chain
// intact; the caller is expected to release the handle.
func (e *Engine) CheckXfer(handle *XferHandle) Status {
	if handle == nil || handle.eng != e {
		return ErrInvalidParam
	}
	return handle.chain.status(e.worker(handle.workerID))
}

// ReleaseReqH cancels any still-pending tokens and frees the handle.
func (e *Engine) ReleaseReqH(handle *XferHandle) Status {
	if handle == nil || handle.eng != e {
		return ErrInvalidParam
	}
	status := handle.chain.release(e.worker(handle.workerID))
	handle.chain.free()
	handle.eng = nil
	return status
}
