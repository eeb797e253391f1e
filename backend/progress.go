package backend

import (
	"errors"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/w1ldptr/nixl/ucx"
)

// progressFunc is the background progress loop. It alternates between
// spinning while any worker reports progress, arming every worker's event
// fd, and parking in poll until the fabric signals or the delay elapses.
// An arm that reports busy means completions raced in after the last empty
// pass; the loop restarts without blocking.
func (e *Engine) progressFunc(active chan<- struct{}, done chan<- struct{}) {
	defer close(done)

	// The loop owns every worker while it runs, and the device context (if
	// captured) binds to the OS thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := e.vram.apply(); err != nil {
		e.log.Warn("device context apply failed", zap.Error(err))
	}

	e.pthrTID.Store(int64(unix.Gettid()))
	close(active)

	pollFds := make([]unix.PollFd, 0, len(e.workers))
	fdWorkers := make([]*ucx.Worker, 0, len(e.workers))
	for i, w := range e.workers {
		fd, err := w.EventFD()
		if err != nil {
			e.log.Error("no event fd for worker", zap.Int("worker", i), zap.Error(err))
			continue
		}
		pollFds = append(pollFds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
		fdWorkers = append(fdWorkers, w)
	}

	delayMs := int(e.cfg.ProgressDelay.Milliseconds())

	for !e.pthrStop.Load() {
		made := false
		for _, w := range e.workers {
			for w.Progress() != 0 {
				made = true
			}
		}
		if made {
			e.notifProgress()
			continue
		}

		for {
			allArmed := true
			for i, w := range e.workers {
				if err := w.Arm(); err != nil {
					if !errors.Is(err, ucx.ErrBusy) {
						e.log.Error("worker arm failed", zap.Int("worker", i), zap.Error(err))
					}
					allArmed = false
					break
				}
			}
			if !allArmed || e.pthrStop.Load() {
				break
			}

			n, err := unix.Poll(pollFds, delayMs)
			if err != nil && !errors.Is(err, unix.EINTR) {
				e.log.Error("event fd poll failed", zap.Error(err))
				break
			}
			if n > 0 {
				for i := range pollFds {
					if pollFds[i].Revents&unix.POLLIN != 0 {
						for fdWorkers[i].Progress() != 0 {
						}
						pollFds[i].Revents = 0
					}
				}
				e.notifProgress()
			}
		}
	}
}

// progressThreadStart launches the loop and waits for it to come up before
// returning.
func (e *Engine) progressThreadStart() {
	e.pthrStop.Store(false)

	if !e.pthrOn {
		return
	}

	active := make(chan struct{})
	done := make(chan struct{})
	e.pthrDone = done
	go e.progressFunc(active, done)
	<-active

	e.pthrStarts.Add(1)
	e.metrics.ProgressThreadStarted(e.metricAttrs())
}

// progressThreadStop requests a stop and joins the loop. The loop notices
// the flag within one poll delay.
func (e *Engine) progressThreadStop() {
	if !e.pthrOn {
		return
	}

	e.pthrStop.Store(true)
	<-e.pthrDone
	e.pthrTID.Store(0)
	e.metrics.ProgressThreadStopped(e.metricAttrs())
}

// progressThreadRestart cycles the loop so it re-applies the captured
// device context before driving workers again.
func (e *Engine) progressThreadRestart() {
	e.progressThreadStop()
	e.progressThreadStart()
}

// ProgressThreadStarts reports how many times the progress loop has been
// started over the engine's lifetime.
func (e *Engine) ProgressThreadStarts() uint64 {
	return e.pthrStarts.Load()
}
