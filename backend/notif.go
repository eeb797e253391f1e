package backend

import (
	"github.com/shamaton/msgpack/v2"
	"go.uber.org/zap"

	"github.com/w1ldptr/nixl/ucx"
)

// Notification is one delivered point-to-point message.
type Notification struct {
	// Agent is the sender's agent name.
	Agent string
	// Msg is the sender-supplied payload.
	Msg string
}

// notifRecord is the wire form of a notification payload.
type notifRecord struct {
	Name string `msgpack:"name"`
	Msg  string `msgpack:"msg"`
}

// notifSendPriv serializes {name, msg} and ships it as an eager active
// message on the handle's worker. While the send is pending the serialized
// buffer is owned by the request tail; inline completions free it at once.
func (e *Engine) notifSendPriv(remoteAgent, msg string, workerID int) (ucx.Req, Status) {
	e.connMu.RLock()
	conn, ok := e.remoteConnMap[remoteAgent]
	e.connMu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	wire, err := msgpack.Marshal(notifRecord{Name: e.cfg.AgentName, Msg: msg})
	if err != nil {
		return nil, ErrBackend
	}
	buf := ucx.CloneToC(wire)

	w := e.worker(workerID)
	req, err := w.SendAm(conn.eps[workerID], amNotif,
		e.amHdr(amNotif), amHdrSize,
		buf, uintptr(len(wire)), true)
	if err != nil {
		ucx.FreeBytes(buf)
		e.log.Warn("notification send failed",
			zap.String("peer", remoteAgent), zap.Error(err))
		return nil, ErrBackend
	}
	if req != nil {
		ucx.ReqSetAmBuffer(req, buf, uintptr(len(wire)))
		return req, InProgress
	}
	ucx.FreeBytes(buf)
	e.metrics.NotifSent(e.metricAttrs())
	return nil, OK
}

// GenNotif sends a standalone notification. A pending send is released
// untracked; the fabric completes it in the background.
func (e *Engine) GenNotif(remoteAgent, msg string) Status {
	workerID := e.workerID()
	req, status := e.notifSendPriv(remoteAgent, msg, workerID)
	switch status {
	case InProgress:
		e.worker(workerID).ReqRelease(req)
		e.metrics.NotifSent(e.metricAttrs())
		return OK
	case OK:
		return OK
	default:
		return status
	}
}

// notifHandler parses an incoming notification and appends it to the queue
// matching the thread that is driving progress.
func (e *Engine) notifHandler(header, payload []byte, rndv bool) error {
	op, ok := amHdrOpcode(header)
	if !ok || op != uint64(amNotif) {
		e.metrics.AmRejected("notif", e.metricAttrs())
		return ErrInvalidParam
	}
	if rndv {
		e.metrics.AmRejected("notif", e.metricAttrs())
		return ErrInvalidParam
	}

	var rec notifRecord
	if err := msgpack.Unmarshal(payload, &rec); err != nil {
		e.log.Warn("malformed notification payload", zap.Error(err))
		e.metrics.AmRejected("notif", e.metricAttrs())
		return ErrInvalidParam
	}

	n := Notification{Agent: rec.Name, Msg: rec.Msg}
	if e.isProgressThread() {
		// Private list, merged under notifMtx after the progress pass.
		e.notifPthrPriv = append(e.notifPthrPriv, n)
	} else {
		e.notifMain = append(e.notifMain, n)
	}
	e.metrics.NotifReceived(e.metricAttrs())
	return nil
}

// notifProgress publishes the progress thread's private list. Called by the
// progress loop after any pass that made progress.
func (e *Engine) notifProgress() {
	if len(e.notifPthrPriv) == 0 {
		return
	}
	e.notifMtx.Lock()
	e.notifPthr = append(e.notifPthr, e.notifPthrPriv...)
	e.notifMtx.Unlock()
	e.notifPthrPriv = e.notifPthrPriv[:0]
}

// GetNotifs splices every delivered notification into out. The output list
// must be empty. With the progress thread disabled the engine first drives
// progress to completion on the calling thread.
func (e *Engine) GetNotifs(out *[]Notification) Status {
	if out == nil || len(*out) != 0 {
		return ErrInvalidParam
	}

	if !e.pthrOn {
		for e.Progress() != 0 {
		}
	}

	if len(e.notifMain) != 0 {
		*out = append(*out, e.notifMain...)
		e.notifMain = e.notifMain[:0]
	}

	e.notifMtx.Lock()
	if len(e.notifPthr) != 0 {
		*out = append(*out, e.notifPthr...)
		e.notifPthr = e.notifPthr[:0]
	}
	e.notifMtx.Unlock()

	return OK
}
