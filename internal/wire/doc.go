// Package wire frames a command invocation for the trip from the client to the
// daemon.
//
// A frame is a 4-byte little-endian length (counting the prefix itself)
// followed by every argument as a NUL-terminated byte string, in order. The
// length prefix lets the daemon pull exactly one request off a persistent
// stream without waiting for end-of-stream. Frames never exceed
// MaxRequestSize; oversized invocations are rejected, not truncated.
package wire
