// Package ucx provides a thin Go wrapper over the UCX communication
// framework: context and worker management, endpoint connection by opaque
// address blob, memory registration with packed remote keys, one-sided
// read/write with endpoint flush, and eager active messages.
//
// The wrapper is deliberately policy-free. Request lifecycles, connection
// catalogs and background progress are the backend package's business; this
// package only makes the fabric callable from Go.
package ucx
