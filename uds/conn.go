// File: uds/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package uds

import (
	"fmt"
	"net"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Conn is an accepted Unix domain stream connection. It satisfies
// api.NetConn over the raw non-blocking descriptor: Read and Write
// surface EAGAIN rather than parking, leaving scheduling to the caller's
// own event loop.
type Conn struct {
	fd     int
	peer   *net.UnixAddr
	closed atomic.Bool
}

func newConn(fd int, peer *net.UnixAddr) *Conn {
	return &Conn{fd: fd, peer: peer}
}

// Read reads into p from the connection.
func (c *Conn) Read(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, unix.EBADF
	}
	return unix.Read(c.fd, p)
}

// Write writes p to the connection.
func (c *Conn) Write(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, unix.EBADF
	}
	return unix.Write(c.fd, p)
}

// Close releases the descriptor. Idempotent.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return unix.Close(c.fd)
}

// RawFD returns the underlying descriptor.
func (c *Conn) RawFD() uintptr { return uintptr(c.fd) }

// RemoteAddr returns the peer address captured at acceptance time.
// Unnamed peers carry an empty name.
func (c *Conn) RemoteAddr() *net.UnixAddr { return c.peer }

func (c *Conn) String() string {
	return fmt.Sprintf("uds.Conn(fd=%d peer=%q)", c.fd, c.peer.Name)
}
