//go:build linux

// Author: momentics <momentics@gmail.com>
//
// Tests for the epoll readiness source: registration bookkeeping,
// level-triggered flag semantics, wake delivery, shutdown.

package reactor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-uds/api"
	"github.com/momentics/hioload-uds/reactor"
)

type testWaker struct {
	ch chan struct{}
}

func newTestWaker() *testWaker { return &testWaker{ch: make(chan struct{}, 1)} }

func (w *testWaker) Wake() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

func (w *testWaker) wait(t *testing.T) {
	t.Helper()
	select {
	case <-w.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("waker never fired")
	}
}

func servePoller(t *testing.T) *reactor.Poller {
	t.Helper()
	p, err := reactor.New()
	if err != nil {
		t.Fatalf("reactor init: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		p.Close()
		<-done
	})
	return p
}

func pair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestRegisterDuplicateFails(t *testing.T) {
	p := servePoller(t)
	rd, _ := pair(t)

	reg, err := p.Register(uintptr(rd))
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	defer reg.Close()

	if _, err := p.Register(uintptr(rd)); !errors.Is(err, api.ErrAlreadyRegistered) {
		t.Fatalf("duplicate register: got %v, want ErrAlreadyRegistered", err)
	}
}

func TestWakeOnReadable(t *testing.T) {
	p := servePoller(t)
	rd, wr := pair(t)

	reg, err := p.Register(uintptr(rd))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer reg.Close()

	w := newTestWaker()
	ready, err := reg.PollReadable(w)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if ready {
		t.Fatal("quiet descriptor reported readable")
	}

	if _, err := unix.Write(wr, []byte("x")); err != nil {
		t.Fatalf("peer write: %v", err)
	}
	w.wait(t)

	ready, err = reg.PollReadable(w)
	if err != nil {
		t.Fatalf("poll after wake: %v", err)
	}
	if !ready {
		t.Fatal("readiness flag not set after wake")
	}
}

func TestReadinessStickyUntilCleared(t *testing.T) {
	p := servePoller(t)
	rd, wr := pair(t)

	reg, err := p.Register(uintptr(rd))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer reg.Close()

	if _, err := unix.Write(wr, []byte("x")); err != nil {
		t.Fatalf("peer write: %v", err)
	}

	w := newTestWaker()
	if ready, _ := reg.PollReadable(w); !ready {
		w.wait(t)
	}

	// The flag stands across repeated polls until acknowledged.
	for i := 0; i < 3; i++ {
		if ready, err := reg.PollReadable(w); err != nil || !ready {
			t.Fatalf("poll %d: ready=%v err=%v, want sticky readiness", i, ready, err)
		}
	}

	reg.ClearReadable()
	if ready, _ := reg.PollReadable(w); ready {
		t.Fatal("flag survived ClearReadable")
	}

	// A fresh arrival is a fresh report.
	if _, err := unix.Write(wr, []byte("y")); err != nil {
		t.Fatalf("peer write: %v", err)
	}
	w.wait(t)
	if ready, _ := reg.PollReadable(w); !ready {
		t.Fatal("new arrival after clear was not reported")
	}
}

func TestCloseWakesSuspendedPoller(t *testing.T) {
	p, err := reactor.New()
	if err != nil {
		t.Fatalf("reactor init: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Serve(ctx)
	}()

	rd, _ := pair(t)
	reg, err := p.Register(uintptr(rd))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	w := newTestWaker()
	if ready, err := reg.PollReadable(w); ready || err != nil {
		t.Fatalf("expected pending on quiet descriptor, got ready=%v err=%v", ready, err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	w.wait(t)
	<-done

	if _, err := reg.PollReadable(w); !errors.Is(err, api.ErrSourceClosed) {
		t.Fatalf("poll after close: got %v, want ErrSourceClosed", err)
	}
}

func TestRegistrationCloseIsIdempotent(t *testing.T) {
	p := servePoller(t)
	rd, _ := pair(t)

	reg, err := p.Register(uintptr(rd))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	// The slot is free again.
	reg2, err := p.Register(uintptr(rd))
	if err != nil {
		t.Fatalf("re-register after close: %v", err)
	}
	reg2.Close()
}
