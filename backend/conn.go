package backend

import (
	"errors"

	"go.uber.org/zap"

	"github.com/w1ldptr/nixl/ucx"
)

// connection holds one endpoint per local worker to a single peer.
type connection struct {
	remoteAgent string
	eps         []*ucx.Ep
	connected   bool
}

// ConnInfo returns the engine's advertised connect-address blob. Peers pass
// it to LoadRemoteConnInfo.
func (e *Engine) ConnInfo() []byte {
	out := make([]byte, len(e.workerAddr))
	copy(out, e.workerAddr)
	return out
}

// CheckConn reports whether the peer is present in the catalog.
func (e *Engine) CheckConn(remoteAgent string) Status {
	e.connMu.RLock()
	_, ok := e.remoteConnMap[remoteAgent]
	e.connMu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return OK
}

// LoadRemoteConnInfo creates one endpoint per local worker from the peer's
// advertised blob. A peer already in the catalog is rejected; on any
// endpoint failure the ones already created are torn down and nothing is
// inserted.
func (e *Engine) LoadRemoteConnInfo(remoteAgent string, connInfo []byte) Status {
	e.connMu.Lock()
	defer e.connMu.Unlock()

	if _, ok := e.remoteConnMap[remoteAgent]; ok {
		return ErrInvalidParam
	}

	conn := &connection{remoteAgent: remoteAgent}
	for i, w := range e.workers {
		ep, err := w.Connect(connInfo)
		if err != nil {
			e.log.Warn("endpoint create failed",
				zap.String("peer", remoteAgent), zap.Int("worker", i), zap.Error(err))
			for j, created := range conn.eps {
				_ = e.workers[j].DisconnectNB(created)
			}
			return ErrBackend
		}
		conn.eps = append(conn.eps, ep)
	}

	e.remoteConnMap[remoteAgent] = conn
	return OK
}

// Connect verifies the path to a loaded peer by sending a connect-check
// from every worker. Connecting to the local agent only loads the engine's
// own blob (loopback); no connect-check is sent on that path.
func (e *Engine) Connect(remoteAgent string) Status {
	if remoteAgent == e.cfg.AgentName {
		return e.LoadRemoteConnInfo(remoteAgent, e.ConnInfo())
	}

	e.connMu.RLock()
	conn, ok := e.remoteConnMap[remoteAgent]
	e.connMu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	failed := false
	reqs := make([]ucx.Req, len(e.workers))
	for i, w := range e.workers {
		req, err := w.SendAm(conn.eps[i], amConnCheck,
			e.amHdr(amConnCheck), amHdrSize,
			e.agentNameC, e.agentNameLen, true)
		if err != nil {
			e.log.Warn("connect check send failed",
				zap.String("peer", remoteAgent), zap.Int("worker", i), zap.Error(err))
			failed = true
			break
		}
		reqs[i] = req
	}

	for i, req := range reqs {
		if req == nil {
			continue
		}
		for {
			err := e.workers[i].Test(req)
			if errors.Is(err, ucx.ErrInProgress) {
				continue
			}
			if err != nil {
				failed = true
			}
			break
		}
		ucx.ReqReset(req)
		e.workers[i].ReqRelease(req)
	}

	if failed {
		return ErrBackend
	}
	e.connMu.Lock()
	conn.connected = true
	e.connMu.Unlock()
	return OK
}

// Disconnect notifies the peer with a fire-and-forget disconnect message,
// then removes it from the catalog.
func (e *Engine) Disconnect(remoteAgent string) Status {
	if remoteAgent != e.cfg.AgentName {
		e.connMu.RLock()
		conn, ok := e.remoteConnMap[remoteAgent]
		e.connMu.RUnlock()
		if !ok {
			return ErrNotFound
		}

		for i, w := range e.workers {
			req, err := w.SendAm(conn.eps[i], amDisconnect,
				e.amHdr(amDisconnect), amHdrSize,
				e.agentNameC, e.agentNameLen, true)
			if err != nil {
				e.log.Warn("disconnect send failed",
					zap.String("peer", remoteAgent), zap.Int("worker", i), zap.Error(err))
				continue
			}
			if req != nil {
				w.ReqRelease(req)
			}
		}
	}

	return e.endConn(remoteAgent)
}

// endConn removes the peer from the catalog, initiating teardown on every
// endpoint. The entry is removed even when a teardown fails.
func (e *Engine) endConn(remoteAgent string) Status {
	e.connMu.Lock()
	conn, ok := e.remoteConnMap[remoteAgent]
	if !ok {
		e.connMu.Unlock()
		return ErrNotFound
	}
	delete(e.remoteConnMap, remoteAgent)
	e.connMu.Unlock()

	failed := false
	for i, ep := range conn.eps {
		if err := e.workers[i].DisconnectNB(ep); err != nil {
			e.log.Warn("endpoint teardown failed",
				zap.String("peer", remoteAgent), zap.Int("worker", i), zap.Error(err))
			failed = true
		}
	}
	if failed {
		return ErrBackend
	}
	return OK
}

// connCheckHandler validates an incoming connect-check: correct opcode,
// eager delivery, and a sender we already loaded.
func (e *Engine) connCheckHandler(header, payload []byte, rndv bool) error {
	op, ok := amHdrOpcode(header)
	if !ok || op != uint64(amConnCheck) {
		e.metrics.AmRejected("conn_check", e.metricAttrs())
		return ErrInvalidParam
	}
	if rndv {
		e.metrics.AmRejected("conn_check", e.metricAttrs())
		return ErrInvalidParam
	}
	if e.CheckConn(string(payload)) != OK {
		e.log.Warn("connect check from unknown agent", zap.String("peer", string(payload)))
		e.metrics.AmRejected("conn_check", e.metricAttrs())
		return ErrInvalidParam
	}
	return nil
}

// disconnectHandler validates an incoming disconnect. Tear-down stays with
// the originator's Disconnect; the receiver side is validation only.
func (e *Engine) disconnectHandler(header, payload []byte, rndv bool) error {
	op, ok := amHdrOpcode(header)
	if !ok || op != uint64(amDisconnect) {
		e.metrics.AmRejected("disconnect", e.metricAttrs())
		return ErrInvalidParam
	}
	if rndv {
		e.metrics.AmRejected("disconnect", e.metricAttrs())
		return ErrInvalidParam
	}
	return nil
}
