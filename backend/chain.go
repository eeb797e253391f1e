package backend

import "github.com/w1ldptr/nixl/ucx"

// reqChain is an intrusive doubly-linked list of in-flight tokens sharing
// one user-visible handle. The links live in the fabric-managed request
// tails; only the sentinel anchor is allocated here. Append order is
// irrelevant: completion is associative across the chain.
type reqChain struct {
	head ucx.Req
}

func newReqChain() reqChain {
	return reqChain{head: ucx.SentinelAlloc()}
}

func (c *reqChain) free() {
	if c.head != nil {
		ucx.SentinelFree(c.head)
		c.head = nil
	}
}

// append links the token right after the sentinel.
func (c *reqChain) append(r ucx.Req) {
	next := ucx.ReqNext(c.head)
	ucx.ReqSetPrev(r, c.head)
	ucx.ReqSetNext(r, next)
	if next != nil {
		ucx.ReqSetPrev(next, r)
	}
	ucx.ReqSetNext(c.head, r)
}

// detach unlinks the whole chain from the sentinel and returns its first
// token.
func (c *reqChain) detach() ucx.Req {
	first := ucx.ReqNext(c.head)
	ucx.ReqSetNext(c.head, nil)
	if first != nil {
		ucx.ReqSetPrev(first, nil)
	}
	return first
}

// status polls every token on the chain. Completed tokens are released back
// to the worker; pending ones are re-enqueued. Returns OK when the chain
// drained, InProgress while any token remains, and the first fabric error
// otherwise — in which case the chain is left intact for release.
func (c *reqChain) status(w *ucx.Worker) Status {
	req := ucx.ReqNext(c.head)
	if req == nil {
		return OK
	}

	out := OK
	for req != nil {
		if !ucx.ReqCompleted(req) {
			switch err := w.Test(req); err {
			case nil:
				ucx.ReqMarkCompleted(req)
			case ucx.ErrInProgress:
				out = InProgress
			default:
				return ErrBackend
			}
		}
		req = ucx.ReqNext(req)
	}

	req = c.detach()
	for req != nil {
		next := ucx.ReqNext(req)
		if ucx.ReqCompleted(req) {
			ucx.ReqReset(req)
			w.ReqRelease(req)
		} else {
			c.append(req)
		}
		req = next
	}
	return out
}

// release cancels every uncompleted token and returns all of them to the
// worker.
func (c *reqChain) release(w *ucx.Worker) Status {
	req := c.detach()
	for req != nil {
		next := ucx.ReqNext(req)
		if !ucx.ReqCompleted(req) {
			w.Cancel(req)
		}
		ucx.ReqReset(req)
		w.ReqRelease(req)
		req = next
	}
	return OK
}
