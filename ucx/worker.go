package ucx

import (
	"errors"
	"unsafe"

	"github.com/w1ldptr/nixl/internal/capi"
)

// Worker is the unit of fabric progress. It can originate one-sided RDMA
// and receive active messages, owns one event fd, and keeps one endpoint
// per peer. A worker is driven by at most one thread at a time.
type Worker struct {
	c *capi.Worker
}

// Ep addresses one peer over one worker.
type Ep struct {
	c *capi.Ep
}

// NewWorker creates a worker on the context.
func NewWorker(ctx *Context) (*Worker, error) {
	if ctx == nil || ctx.c == nil {
		return nil, ErrInvalidHandle{"context"}
	}
	c, err := capi.NewWorker(ctx.c)
	if err != nil {
		return nil, err
	}
	return &Worker{c: c}, nil
}

// Close destroys the worker. No request produced by it may still be owned
// by a chain.
func (w *Worker) Close() {
	if w == nil || w.c == nil {
		return
	}
	w.c.Close()
	w.c = nil
}

// Address returns the worker's connect-address blob. Peers pass the blob to
// Connect; the bytes are opaque and fabric-defined.
func (w *Worker) Address() ([]byte, error) {
	if w == nil || w.c == nil {
		return nil, ErrInvalidHandle{"worker"}
	}
	return w.c.Address()
}

// Connect creates an endpoint to the peer worker identified by addr.
func (w *Worker) Connect(addr []byte) (*Ep, error) {
	if w == nil || w.c == nil {
		return nil, ErrInvalidHandle{"worker"}
	}
	c, err := w.c.Connect(addr)
	if err != nil {
		return nil, err
	}
	return &Ep{c: c}, nil
}

// DisconnectNB initiates endpoint teardown; subsequent progress completes
// it. The endpoint is unusable afterwards.
func (w *Worker) DisconnectNB(ep *Ep) error {
	if w == nil || w.c == nil {
		return ErrInvalidHandle{"worker"}
	}
	if ep == nil || ep.c == nil {
		return ErrInvalidHandle{"endpoint"}
	}
	err := w.c.DisconnectNB(ep.c)
	ep.c = nil
	return err
}

// Progress advances the worker; non-zero means events were processed.
func (w *Worker) Progress() int {
	if w == nil || w.c == nil {
		return 0
	}
	return w.c.Progress()
}

// EventFD returns the worker's wakeup file descriptor.
func (w *Worker) EventFD() (int, error) {
	if w == nil || w.c == nil {
		return -1, ErrInvalidHandle{"worker"}
	}
	return w.c.EventFD()
}

// Arm prepares the event fd for a blocking wait. Returns nil when armed and
// ErrBusy when completions raced in; the caller must drain and retry before
// blocking.
func (w *Worker) Arm() error {
	if w == nil || w.c == nil {
		return ErrInvalidHandle{"worker"}
	}
	switch status := w.c.Arm(); status {
	case capi.Success:
		return nil
	case capi.ErrBusy:
		return ErrBusy
	default:
		return status
	}
}

// Signal wakes a poll blocked on the worker's event fd.
func (w *Worker) Signal() error {
	if w == nil || w.c == nil {
		return ErrInvalidHandle{"worker"}
	}
	return w.c.Signal()
}

// Test drives one progress pass and polls the request. nil means complete,
// ErrInProgress means still pending, anything else is a fabric failure.
func (w *Worker) Test(req Req) error {
	if w == nil || w.c == nil {
		return ErrInvalidHandle{"worker"}
	}
	switch status := w.c.Test(capi.Req(req)); status {
	case capi.Success:
		return nil
	case capi.ErrInProgress:
		return ErrInProgress
	default:
		return status
	}
}

// Cancel attempts to abort an uncompleted request. The caller still owns
// the token and must release it.
func (w *Worker) Cancel(req Req) {
	if w == nil || w.c == nil {
		return
	}
	w.c.Cancel(capi.Req(req))
}

// ReqRelease returns the token to the worker. It does not reset the tail;
// callers that want a held buffer freed call ReqReset first.
func (w *Worker) ReqRelease(req Req) {
	if w == nil || w.c == nil {
		return
	}
	w.c.Release(capi.Req(req))
}

// Read posts a one-sided read from the remote address into local registered
// memory. A nil request with nil error means inline completion; the caller
// must not wait on it. Zero-length reads complete inline.
func (w *Worker) Read(ep *Ep, remote uint64, rkey *Rkey, local unsafe.Pointer, mem *Mem, size uintptr) (Req, error) {
	if w == nil || w.c == nil {
		return nil, ErrInvalidHandle{"worker"}
	}
	if ep == nil || ep.c == nil {
		return nil, ErrInvalidHandle{"endpoint"}
	}
	if size == 0 {
		return nil, nil
	}
	req, status := w.c.Get(ep.c, local, memHandle(mem), remote, rkeyHandle(rkey), size)
	return foldReqStatus(req, status)
}

// Write posts a one-sided write from local registered memory to the remote
// address. Same completion contract as Read.
func (w *Worker) Write(ep *Ep, local unsafe.Pointer, mem *Mem, remote uint64, rkey *Rkey, size uintptr) (Req, error) {
	if w == nil || w.c == nil {
		return nil, ErrInvalidHandle{"worker"}
	}
	if ep == nil || ep.c == nil {
		return nil, ErrInvalidHandle{"endpoint"}
	}
	if size == 0 {
		return nil, nil
	}
	req, status := w.c.Put(ep.c, local, memHandle(mem), remote, rkeyHandle(rkey), size)
	return foldReqStatus(req, status)
}

// FlushEp posts a barrier that completes once every previously posted
// one-sided operation on the endpoint has reached the remote's memory
// visibility domain.
func (w *Worker) FlushEp(ep *Ep) (Req, error) {
	if w == nil || w.c == nil {
		return nil, ErrInvalidHandle{"worker"}
	}
	if ep == nil || ep.c == nil {
		return nil, ErrInvalidHandle{"endpoint"}
	}
	req, status := w.c.FlushEp(ep.c)
	return foldReqStatus(req, status)
}

// SendAm posts an active message. Header and payload must live in C-managed
// memory that outlives the operation. Control senders force the eager flag;
// receivers reject rendezvous delivery for those ids.
func (w *Worker) SendAm(ep *Ep, id uint, hdr unsafe.Pointer, hdrLen uintptr,
	payload unsafe.Pointer, payloadLen uintptr, eager bool) (Req, error) {
	if w == nil || w.c == nil {
		return nil, ErrInvalidHandle{"worker"}
	}
	if ep == nil || ep.c == nil {
		return nil, ErrInvalidHandle{"endpoint"}
	}
	var flags uint32
	if eager {
		flags |= capi.AmSendFlagEager
	}
	req, status := w.c.SendAm(ep.c, id, hdr, hdrLen, payload, payloadLen, flags)
	return foldReqStatus(req, status)
}

// AmHandler is invoked by the fabric, on whichever thread drives progress,
// for each received message with the registered id. rndv reports rendezvous
// delivery. The slices alias fabric memory and must not be retained. A
// non-nil return aborts delivery of that message without terminating the
// worker.
type AmHandler func(header, payload []byte, rndv bool) error

// RegisterAmHandler installs fn for active messages with the given id.
func (w *Worker) RegisterAmHandler(id uint, fn AmHandler) error {
	if w == nil || w.c == nil {
		return ErrInvalidHandle{"worker"}
	}
	if fn == nil {
		return errors.New("ucx: nil active-message handler")
	}
	return w.c.RegisterAmHandler(id, func(header, payload []byte, attrs uint64) capi.Errno {
		rndv := attrs&capi.RecvAttrRndv != 0
		if err := fn(header, payload, rndv); err != nil {
			return capi.ErrInvalidParam
		}
		return capi.Success
	})
}

func foldReqStatus(req capi.Req, status capi.Errno) (Req, error) {
	switch status {
	case capi.Success:
		return nil, nil
	case capi.ErrInProgress:
		return Req(req), nil
	default:
		return nil, status
	}
}
