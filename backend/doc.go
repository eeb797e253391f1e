// Package backend implements a data-movement engine over the ucx wrapper:
// peer connections with per-worker endpoints, memory registration and
// remote-key exchange by opaque blob, one-sided read/write transfers with
// flush and optional completion notifications, and a background progress
// loop parked on the workers' event fds.
//
// The engine is the transfer backend of an upper agent. All user-facing
// operations are non-blocking and report a Status; background failures
// surface on the next CheckXfer or GetNotifs call.
package backend
