package ucx

import (
	"unsafe"

	"github.com/w1ldptr/nixl/internal/capi"
)

// Req is an opaque token for one in-flight operation. The fabric tails each
// request with a user area carrying a completed mark, an optional held
// message buffer, and the intrusive chain links — so tracking a token costs
// no allocation and releasing it maps back to a single fabric call.
//
// A token either lives on a request chain or has been released to its
// worker, never both.
type Req = capi.Req

// ReqCompleted reports the token's completed mark.
func ReqCompleted(r Req) bool { return capi.ReqCompleted(r) }

// ReqMarkCompleted sets the token's completed mark.
func ReqMarkCompleted(r Req) { capi.ReqMarkCompleted(r) }

// ReqSetAmBuffer parks a C-allocated message buffer in the token's tail.
// The buffer is freed when the token is reset on release.
func ReqSetAmBuffer(r Req, buf unsafe.Pointer, n uintptr) { capi.ReqSetAmBuffer(r, buf, n) }

// ReqNext returns the next chain link, or nil at the tail.
func ReqNext(r Req) Req { return capi.ReqNext(r) }

// ReqPrev returns the previous chain link, or nil at the head.
func ReqPrev(r Req) Req { return capi.ReqPrev(r) }

// ReqSetNext links r's next pointer.
func ReqSetNext(r, next Req) { capi.ReqSetNext(r, next) }

// ReqSetPrev links r's prev pointer.
func ReqSetPrev(r, prev Req) { capi.ReqSetPrev(r, prev) }

// ReqReset restores a token's tail to its initial state, freeing any held
// message buffer. Chain owners reset a token before releasing it; tokens
// released unreset (fire-and-forget sends) keep their buffer until the
// fabric tears the request pool down.
func ReqReset(r Req) { capi.Reset(r) }

// SentinelAlloc allocates a chain anchor outside the fabric's request pool.
// Its tail reads as completed so status polls never test it.
func SentinelAlloc() Req { return capi.SentinelAlloc() }

// SentinelFree releases a chain anchor.
func SentinelFree(r Req) { capi.SentinelFree(r) }
