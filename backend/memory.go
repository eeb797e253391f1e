package backend

import (
	"unsafe"

	"go.uber.org/zap"

	"github.com/w1ldptr/nixl/ucx"
)

// MemDesc describes a byte range to register.
type MemDesc struct {
	Addr uintptr
	Len  uintptr
	// DevID is the claimed owning device for device-kind registrations.
	DevID int
}

// LocalMD is a local registration record. Its packed rkey blob is the
// public metadata advertised to peers.
type LocalMD struct {
	mem      *ucx.Mem
	rkeyBlob []byte
}

// RemoteMD is an imported remote-memory record: the peer connection plus
// one imported rkey per local worker.
type RemoteMD struct {
	conn  *connection
	rkeys []*ucx.Rkey
}

// RegisterMem registers a region with the fabric and packs its rkey for
// advertisement. Device-kind registrations bind the device context first
// and may restart the progress thread.
func (e *Engine) RegisterMem(desc MemDesc, kind MemKind) (*LocalMD, Status) {
	if kind == KindDevice {
		restart, err := e.vram.update(unsafe.Pointer(desc.Addr), desc.DevID)
		if err != nil {
			e.log.Warn("device context binding failed",
				zap.Int("dev_id", desc.DevID), zap.Error(err))
			return nil, ErrNotSupported
		}
		if restart {
			e.progressThreadRestart()
		}
	}

	mem, err := ucx.RegisterMemory(e.ctx, unsafe.Pointer(desc.Addr), desc.Len)
	if err != nil {
		e.log.Warn("memory registration failed", zap.Error(err))
		return nil, ErrBackend
	}
	blob, err := ucx.PackRkey(e.ctx, mem)
	if err != nil {
		e.log.Warn("rkey pack failed", zap.Error(err))
		ucx.DeregisterMemory(e.ctx, mem)
		return nil, ErrBackend
	}
	return &LocalMD{mem: mem, rkeyBlob: blob}, OK
}

// DeregisterMem releases the registration.
func (e *Engine) DeregisterMem(md *LocalMD) Status {
	if md == nil || md.mem == nil {
		return ErrInvalidParam
	}
	ucx.DeregisterMemory(e.ctx, md.mem)
	md.mem = nil
	md.rkeyBlob = nil
	return OK
}

// PublicData returns the registration's packed rkey blob.
func (e *Engine) PublicData(md *LocalMD) ([]byte, Status) {
	if md == nil || md.mem == nil {
		return nil, ErrInvalidParam
	}
	out := make([]byte, len(md.rkeyBlob))
	copy(out, md.rkeyBlob)
	return out, OK
}

// loadMDHelper imports a packed rkey blob on every worker's endpoint to the
// named peer. A partial import is unwound.
func (e *Engine) loadMDHelper(blob []byte, agent string) (*RemoteMD, Status) {
	e.connMu.RLock()
	conn, ok := e.remoteConnMap[agent]
	e.connMu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	md := &RemoteMD{conn: conn}
	for i := range e.workers {
		rkey, err := ucx.ImportRkey(conn.eps[i], blob)
		if err != nil {
			e.log.Warn("rkey import failed",
				zap.String("peer", agent), zap.Int("worker", i), zap.Error(err))
			for _, imported := range md.rkeys {
				ucx.DestroyRkey(imported)
			}
			return nil, ErrBackend
		}
		md.rkeys = append(md.rkeys, rkey)
	}
	return md, OK
}

// LoadLocalMD turns a local registration into a remote record against the
// engine's own loopback connection.
func (e *Engine) LoadLocalMD(local *LocalMD) (*RemoteMD, Status) {
	if local == nil || local.mem == nil {
		return nil, ErrInvalidParam
	}
	return e.loadMDHelper(local.rkeyBlob, e.cfg.AgentName)
}

// LoadRemoteMD imports a peer's advertised registration blob.
func (e *Engine) LoadRemoteMD(blob []byte, kind MemKind, remoteAgent string) (*RemoteMD, Status) {
	if len(blob) == 0 {
		return nil, ErrInvalidParam
	}
	return e.loadMDHelper(blob, remoteAgent)
}

// UnloadMD destroys an imported record's rkeys.
func (e *Engine) UnloadMD(md *RemoteMD) Status {
	if md == nil {
		return ErrInvalidParam
	}
	for _, rkey := range md.rkeys {
		ucx.DestroyRkey(rkey)
	}
	md.rkeys = nil
	md.conn = nil
	return OK
}
