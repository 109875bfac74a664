// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Connected-stream abstraction produced by acceptance. Kept compatible
// with custom event loops that want the raw descriptor back.

package api

// NetConn abstracts a full-duplex byte-stream connection that may or may
// not be backed by Go's net.Conn.
type NetConn interface {
	// Read reads into a preallocated buffer.
	Read(p []byte) (n int, err error)

	// Write writes buffer contents into the connection.
	Write(p []byte) (n int, err error)

	// Close shuts down the connection and releases the descriptor.
	Close() error

	// RawFD returns the underlying OS-level file descriptor.
	RawFD() uintptr
}
