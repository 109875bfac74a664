// File: uds/listener.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Readiness-gated Unix domain socket listener. Socket creation and the
// raw accept call live in sock_linux.go / sock_darwin.go.

package uds

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-uds/api"
	"github.com/momentics/hioload-uds/internal/poll"
)

// Listener accepts connections on a Unix domain stream socket gated by a
// readiness source.
type Listener struct {
	ev   *poll.Evented
	path string
}

// Bind creates a listening socket at path and registers it with src.
func Bind(src api.ReadinessSource, path string) (*Listener, error) {
	fd, err := listenSocket(path)
	if err != nil {
		return nil, err
	}
	ev, err := poll.NewEvented(src, fd)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Listener{ev: ev, path: path}, nil
}

// FromUnixListener adopts an already-bound stdlib listener. The listener
// is duplicated at the descriptor level; the original remains usable by
// its owner. Fails when the descriptor cannot be registered with src,
// e.g. it is already registered there.
func FromUnixListener(src api.ReadinessSource, ln *net.UnixListener) (*Listener, error) {
	f, err := ln.File()
	if err != nil {
		return nil, fmt.Errorf("dup listener: %w", err)
	}
	fd, err := unix.Dup(int(f.Fd()))
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("dup fd: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set nonblock: %w", err)
	}
	unix.CloseOnExec(fd)
	ev, err := poll.NewEvented(src, fd)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	path := ""
	if ua, ok := ln.Addr().(*net.UnixAddr); ok {
		path = ua.Name
	}
	return &Listener{ev: ev, path: path}, nil
}

// LocalAddr returns the bound socket address.
func (l *Listener) LocalAddr() (*net.UnixAddr, error) {
	sa, err := unix.Getsockname(l.ev.FD())
	if err != nil {
		return nil, fmt.Errorf("getsockname: %w", err)
	}
	ua, ok := sa.(*unix.SockaddrUnix)
	if !ok {
		return nil, fmt.Errorf("getsockname: not a unix socket address")
	}
	return &net.UnixAddr{Name: ua.Name, Net: "unix"}, nil
}

// TakeError returns and clears the socket's pending error (SO_ERROR).
// The first result is the pending error, nil when none; the second is a
// failure of the query itself.
func (l *Listener) TakeError() (error, error) {
	v, err := unix.GetsockoptInt(l.ev.FD(), unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return nil, fmt.Errorf("getsockopt SO_ERROR: %w", err)
	}
	if v == 0 {
		return nil, nil
	}
	return unix.Errno(v), nil
}

// PollAccept performs one acceptance step.
//
// Outcomes: a connection with its peer address; api.ErrPending with w
// armed for exactly one wake; or a per-accept OS error. An empty accept
// after a readiness report is stale notification, not an error: the flag
// is cleared before re-arming, so a connection arriving in between is
// re-reported by the level-triggered source.
func (l *Listener) PollAccept(w api.Waker) (*Conn, *net.UnixAddr, error) {
	for {
		ready, err := l.ev.PollReadReady(w)
		if err != nil {
			return nil, nil, err
		}
		if !ready {
			return nil, nil, api.ErrPending
		}
		nfd, sa, err := acceptSocket(l.ev.FD())
		if err == nil {
			conn := newConn(nfd, sockaddrUnix(sa))
			return conn, conn.RemoteAddr(), nil
		}
		if err == unix.EAGAIN {
			// Backlog drained: the readiness report was stale.
			l.ev.ClearReadReady()
			continue
		}
		if err == unix.EWOULDBLOCK {
			// Same treatment as EAGAIN, kept apart in case a platform
			// ever splits the two conditions.
			l.ev.ClearReadReady()
			continue
		}
		return nil, nil, fmt.Errorf("accept: %w", err)
	}
}

// Accept blocks until a connection is accepted, a per-accept error
// occurs, or ctx is done. One logical consumer per Listener: concurrent
// callers race at the accept call uncoordinated.
func (l *Listener) Accept(ctx context.Context) (*Conn, *net.UnixAddr, error) {
	w := newChanWaker()
	for {
		conn, addr, err := l.PollAccept(w)
		if err != api.ErrPending {
			return conn, addr, err
		}
		select {
		case <-w.ch:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
}

// Incoming consumes the listener, returning the acceptance sequence.
func (l *Listener) Incoming() *Incoming {
	return &Incoming{listener: l}
}

// RawFD exposes the listening descriptor for introspection.
func (l *Listener) RawFD() uintptr { return uintptr(l.ev.FD()) }

// Close deregisters from the readiness source and releases the
// descriptor. The filesystem entry is left to its creator; removing it
// frees the path for a later Bind. Idempotent.
func (l *Listener) Close() error {
	return l.ev.Close()
}

func (l *Listener) String() string {
	return fmt.Sprintf("uds.Listener(fd=%d path=%q)", l.ev.FD(), l.path)
}

// sockaddrUnix converts the raw peer sockaddr; unnamed client sockets
// yield an empty name.
func sockaddrUnix(sa unix.Sockaddr) *net.UnixAddr {
	if ua, ok := sa.(*unix.SockaddrUnix); ok {
		return &net.UnixAddr{Name: ua.Name, Net: "unix"}
	}
	return &net.UnixAddr{Net: "unix"}
}

// chanWaker is the channel rendezvous driving Accept. Buffered by one:
// a wake landing after cancellation parks harmlessly in the buffer.
type chanWaker struct {
	ch chan struct{}
}

func newChanWaker() *chanWaker {
	return &chanWaker{ch: make(chan struct{}, 1)}
}

func (w *chanWaker) Wake() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}
