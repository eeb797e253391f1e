package backend

import (
	"encoding/binary"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/w1ldptr/nixl/ucx"
)

// Active-message ids and the opcode carried in their 8-byte header.
const (
	amConnCheck  uint = 1
	amDisconnect uint = 2
	amNotif      uint = 3
)

const amHdrSize = 8

// MemKind identifies where a registered region lives.
type MemKind int

const (
	// KindHost is ordinary host memory.
	KindHost MemKind = iota
	// KindDevice is device-resident memory.
	KindDevice
)

func (k MemKind) String() string {
	switch k {
	case KindHost:
		return "host"
	case KindDevice:
		return "device"
	default:
		return "unknown"
	}
}

// Engine is one backend instance: a fabric context, a fixed set of workers,
// the peer-connection catalog, and the optional background progress loop.
type Engine struct {
	cfg     Config
	log     *zap.Logger
	metrics MetricHook

	ctx     *ucx.Context
	workers []*ucx.Worker

	// Advertised connect-address blob and the stable C-side copies used as
	// active-message header/payload storage.
	workerAddr   []byte
	agentNameC   unsafe.Pointer
	agentNameLen uintptr
	amHdrC       [4]unsafe.Pointer

	// Peer catalog. Guarded for concurrent peer mutation; transfer paths
	// take the read side only.
	connMu        sync.RWMutex
	remoteConnMap map[string]*connection

	vram vramState

	// Progress thread state.
	pthrOn     bool
	pthrStop   atomic.Bool
	pthrDone   chan struct{}
	pthrTID    atomic.Int64
	pthrStarts atomic.Uint64

	// Notification queues. notifPthrPriv is owned by the progress thread;
	// notifPthr is guarded by notifMtx; notifMain is filled by caller-thread
	// progress and drained on the same threads.
	notifMtx      sync.Mutex
	notifPthrPriv []Notification
	notifPthr     []Notification
	notifMain     []Notification

	closed bool
}

// New constructs an engine. The progress thread, if enabled, is running by
// the time New returns.
func New(cfg Config) (*Engine, error) {
	conf, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if conf.EnableProgressThread && !ucx.MTLevelSupported(ucx.MTWorker) {
		return nil, ErrNotSupported
	}

	ctx, err := ucx.NewContext(ucx.ContextConfig{
		Devices:  conf.devices(),
		MTLevel:  ucx.MTWorker,
		Eventing: conf.EnableProgressThread,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:           conf,
		log:           conf.Logger,
		metrics:       conf.Metrics,
		ctx:           ctx,
		remoteConnMap: make(map[string]*connection),
		pthrOn:        conf.EnableProgressThread,
	}

	for i := 0; i < conf.NumWorkers; i++ {
		w, err := ucx.NewWorker(ctx)
		if err != nil {
			e.teardown()
			return nil, err
		}
		e.workers = append(e.workers, w)

		addr, err := w.Address()
		if err != nil {
			e.teardown()
			return nil, err
		}
		e.workerAddr = addr

		if err := w.RegisterAmHandler(amConnCheck, e.connCheckHandler); err != nil {
			e.teardown()
			return nil, err
		}
		if err := w.RegisterAmHandler(amDisconnect, e.disconnectHandler); err != nil {
			e.teardown()
			return nil, err
		}
		if err := w.RegisterAmHandler(amNotif, e.notifHandler); err != nil {
			e.teardown()
			return nil, err
		}
	}

	e.agentNameC = ucx.CloneToC([]byte(conf.AgentName))
	e.agentNameLen = uintptr(len(conf.AgentName))
	for op := amConnCheck; op <= amNotif; op++ {
		var hdr [amHdrSize]byte
		binary.LittleEndian.PutUint64(hdr[:], uint64(op))
		e.amHdrC[op] = ucx.CloneToC(hdr[:])
	}

	e.vram.init(os.Getenv(EnvDisableDeviceCtx) == "")

	e.progressThreadStart()

	e.log.Info("engine initialized",
		zap.String("agent", conf.AgentName),
		zap.Int("workers", conf.NumWorkers),
		zap.Bool("progress_thread", conf.EnableProgressThread))
	return e, nil
}

// Close shuts the engine down: stop the progress thread, tear down the
// device context, drop remaining connections, release fabric resources
// bottom-up. Registered memory and loaded metadata must already be released
// by the owner.
func (e *Engine) Close() {
	if e == nil || e.closed {
		return
	}
	e.closed = true

	e.progressThreadStop()
	e.vram.fini()

	e.connMu.Lock()
	for agent, conn := range e.remoteConnMap {
		for i, ep := range conn.eps {
			if err := e.workers[i].DisconnectNB(ep); err != nil {
				e.log.Warn("endpoint teardown failed",
					zap.String("peer", agent), zap.Int("worker", i), zap.Error(err))
			}
		}
		delete(e.remoteConnMap, agent)
	}
	e.connMu.Unlock()

	e.teardown()
}

func (e *Engine) teardown() {
	for _, w := range e.workers {
		w.Close()
	}
	e.workers = nil
	if e.ctx != nil {
		e.ctx.Close()
		e.ctx = nil
	}
	ucx.FreeBytes(e.agentNameC)
	e.agentNameC = nil
	for i := range e.amHdrC {
		ucx.FreeBytes(e.amHdrC[i])
		e.amHdrC[i] = nil
	}
}

// SupportedMems lists the memory kinds this engine can register.
func (e *Engine) SupportedMems() []MemKind {
	return []MemKind{KindHost, KindDevice}
}

// AgentName returns the local agent identifier.
func (e *Engine) AgentName() string {
	return e.cfg.AgentName
}

// Progress drives every worker once on the calling thread and returns the
// number of events processed. Used when the progress thread is disabled;
// allowed alongside it for latency-sensitive draining.
func (e *Engine) Progress() int {
	total := 0
	for _, w := range e.workers {
		total += w.Progress()
	}
	return total
}

// workerID shards the calling OS thread onto a worker. The mapping is
// stable per thread; callers that need it pinned should lock the goroutine
// to its thread around a handle's lifetime.
func (e *Engine) workerID() int {
	var tid [8]byte
	binary.LittleEndian.PutUint64(tid[:], uint64(unix.Gettid()))
	return int(xxhash.Sum64(tid[:]) % uint64(len(e.workers)))
}

func (e *Engine) isProgressThread() bool {
	return e.pthrTID.Load() == int64(unix.Gettid())
}

func (e *Engine) worker(id int) *ucx.Worker {
	return e.workers[id]
}

func (e *Engine) amHdr(op uint) unsafe.Pointer {
	return e.amHdrC[op]
}

func amHdrOpcode(hdr []byte) (uint64, bool) {
	if len(hdr) != amHdrSize {
		return 0, false
	}
	return binary.LittleEndian.Uint64(hdr), true
}
