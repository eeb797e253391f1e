package backend

import (
	"testing"

	"github.com/w1ldptr/nixl/ucx"
)

// Chain link manipulation is exercised with standalone sentinel tails: they
// carry the same intrusive links as real tokens without needing a fabric
// request pool.
func fakeToken(t *testing.T) ucx.Req {
	t.Helper()
	req := ucx.SentinelAlloc()
	if req == nil {
		t.Fatalf("token allocation failed")
	}
	t.Cleanup(func() { ucx.SentinelFree(req) })
	return req
}

func chainLen(c *reqChain) int {
	n := 0
	for req := ucx.ReqNext(c.head); req != nil; req = ucx.ReqNext(req) {
		n++
	}
	return n
}

func TestChainAppendDetach(t *testing.T) {
	c := newReqChain()
	defer c.free()

	if chainLen(&c) != 0 {
		t.Fatalf("fresh chain must be empty")
	}
	if !ucx.ReqCompleted(c.head) {
		t.Fatalf("sentinel must read as completed so it is never polled")
	}

	tokens := []ucx.Req{fakeToken(t), fakeToken(t), fakeToken(t)}
	for _, tok := range tokens {
		c.append(tok)
	}
	if got := chainLen(&c); got != 3 {
		t.Fatalf("chain length: got %d want 3", got)
	}

	// Append links at the front; the links must be mutually consistent.
	for req := ucx.ReqNext(c.head); req != nil; req = ucx.ReqNext(req) {
		if next := ucx.ReqNext(req); next != nil && ucx.ReqPrev(next) != req {
			t.Fatalf("prev/next links inconsistent")
		}
	}

	first := c.detach()
	if chainLen(&c) != 0 {
		t.Fatalf("detach must empty the chain")
	}
	n := 0
	for req := first; req != nil; req = ucx.ReqNext(req) {
		n++
	}
	if n != 3 {
		t.Fatalf("detached run length: got %d want 3", n)
	}
}

func TestChainCompletionMarks(t *testing.T) {
	c := newReqChain()
	defer c.free()

	tok := fakeToken(t)
	// Sentinels are born completed; reset puts them in the pristine token
	// state a fabric request starts in.
	ucx.ReqReset(tok)
	if ucx.ReqCompleted(tok) {
		t.Fatalf("reset token must not read as completed")
	}
	c.append(tok)

	ucx.ReqMarkCompleted(tok)
	if !ucx.ReqCompleted(tok) {
		t.Fatalf("completed mark not visible")
	}
}
