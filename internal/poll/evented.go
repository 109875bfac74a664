// File: internal/poll/evented.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Evented pairs a non-blocking descriptor with its readiness-source
// registration and owns both lifetimes together.

package poll

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-uds/api"
)

// Evented owns one descriptor and its registration.
type Evented struct {
	fd     int
	reg    api.Registration
	closed atomic.Bool
}

// NewEvented registers fd with the source. On failure the caller keeps
// ownership of fd.
func NewEvented(src api.ReadinessSource, fd int) (*Evented, error) {
	reg, err := src.Register(uintptr(fd))
	if err != nil {
		return nil, fmt.Errorf("register with readiness source: %w", err)
	}
	return &Evented{fd: fd, reg: reg}, nil
}

// FD returns the owned descriptor.
func (e *Evented) FD() int { return e.fd }

// PollReadReady polls the readiness flag, arming w on the pending path.
func (e *Evented) PollReadReady(w api.Waker) (bool, error) {
	if e.closed.Load() {
		return false, api.ErrListenerClosed
	}
	return e.reg.PollReadable(w)
}

// ClearReadReady acknowledges a stale readiness report.
func (e *Evented) ClearReadReady() {
	e.reg.ClearReadable()
}

// Close deregisters then closes the descriptor. Idempotent.
func (e *Evented) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	derr := e.reg.Close()
	cerr := unix.Close(e.fd)
	if derr != nil {
		return derr
	}
	if cerr != nil {
		return fmt.Errorf("close fd %d: %w", e.fd, cerr)
	}
	return nil
}
