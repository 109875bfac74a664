//go:build linux
// +build linux

// File: reactor/poller_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll implementation of api.ReadinessSource. Kernel events are
// taken edge-triggered and latched into a sticky per-descriptor flag, so
// the serve loop never spins on a standing condition while the flag is
// re-reported to pollers until acknowledged. An owner that clears only
// after draining cannot miss a connection: the next arrival is a fresh
// edge. An eventfd interrupts EpollWait for shutdown and cancellation.

package reactor

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-uds/api"
)

// Poller is an epoll-backed readiness source.
type Poller struct {
	epfd   int
	wakefd int

	mu        sync.Mutex
	regs      map[uintptr]*registration
	closed    bool
	fdsClosed bool
	serving   bool
	serveDone chan struct{}
}

// New creates an epoll instance plus the shutdown eventfd.
func New() (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd create: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wakefd: %w", err)
	}
	return &Poller{
		epfd:   epfd,
		wakefd: wakefd,
		regs:   make(map[uintptr]*registration),
	}, nil
}

// Register adds a descriptor to the epoll interest set and returns its
// registration handle. A descriptor may have at most one live registration.
func (p *Poller) Register(fd uintptr) (api.Registration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, api.ErrSourceClosed
	}
	if _, dup := p.regs[fd]; dup {
		return nil, fmt.Errorf("register fd %d: %w", fd, api.ErrAlreadyRegistered)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, int(fd), &ev); err != nil {
		if err == unix.EEXIST {
			return nil, fmt.Errorf("register fd %d: %w", fd, api.ErrAlreadyRegistered)
		}
		return nil, fmt.Errorf("epoll ctl add: %w", err)
	}
	r := &registration{p: p, fd: fd}
	p.regs[fd] = r
	return r, nil
}

// Serve runs the demultiplex loop until ctx is done or the poller closes.
// Ready events are queued and wakers fired after the batch walk, so a Wake
// callback can re-arm without racing the event scan.
func (p *Poller) Serve(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return api.ErrSourceClosed
	}
	if p.serving {
		p.mu.Unlock()
		return fmt.Errorf("serve: loop already running")
	}
	p.serving = true
	done := make(chan struct{})
	p.serveDone = done
	p.mu.Unlock()

	stop := make(chan struct{})
	defer func() {
		close(stop)
		p.mu.Lock()
		p.serving = false
		p.mu.Unlock()
		close(done)
	}()
	go func() {
		select {
		case <-ctx.Done():
			p.kick()
		case <-stop:
		}
	}()

	events := make([]unix.EpollEvent, 128)
	wakes := queue.New()
	for {
		n, err := unix.EpollWait(p.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if p.isClosed() {
				return nil
			}
			return fmt.Errorf("epoll wait: %w", err)
		}
		for i := 0; i < n; i++ {
			fd := uintptr(events[i].Fd)
			if int(fd) == p.wakefd {
				p.drainWakefd()
				continue
			}
			p.mu.Lock()
			r, ok := p.regs[fd]
			p.mu.Unlock()
			if !ok {
				continue
			}
			r.events.Add(1)
			if w := r.disarm(); w != nil {
				wakes.Add(w)
			}
		}
		for wakes.Length() > 0 {
			wakes.Remove().(api.Waker).Wake()
		}
		if p.isClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// Close shuts down the poller. Suspended callers are woken so their next
// poll observes api.ErrSourceClosed. Waits for a running Serve loop to
// exit before the descriptors are released, so Close must not be called
// from inside a Waker. Registration handles stay owned by their
// listeners; closing them afterwards is a no-op at the epoll level.
func (p *Poller) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	pending := make([]api.Waker, 0, len(p.regs))
	for _, r := range p.regs {
		if w := r.disarm(); w != nil {
			pending = append(pending, w)
		}
	}
	var done chan struct{}
	if p.serving {
		done = p.serveDone
	}
	p.mu.Unlock()

	p.kick()
	for _, w := range pending {
		w.Wake()
	}
	if done != nil {
		<-done
	}

	p.mu.Lock()
	p.fdsClosed = true
	p.mu.Unlock()
	err := unix.Close(p.epfd)
	unix.Close(p.wakefd)
	return err
}

func (p *Poller) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// kick interrupts a blocked EpollWait via the eventfd. Guarded against
// the descriptors having been released.
func (p *Poller) kick() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fdsClosed {
		return
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	unix.Write(p.wakefd, buf[:])
}

func (p *Poller) drainWakefd() {
	var buf [8]byte
	unix.Read(p.wakefd, buf[:])
}

// registration carries per-descriptor readiness state and the armed
// waker. Readiness is an edge counter, not a boolean: the descriptor is
// readable while events > acked. ClearReadable acknowledges only the
// edges the owner had seen at its last poll, so an edge landing between
// an empty accept and the clear survives and re-reports — clearing a
// boolean there would lose that connection.
type registration struct {
	p        *Poller
	fd       uintptr
	events   atomic.Uint64
	acked    atomic.Uint64
	observed atomic.Uint64

	mu    sync.Mutex
	waker api.Waker
}

// PollReadable implements api.Registration. The re-check after arming
// closes the race with an edge landing between the first load and the
// arm: either it is seen here or the serve loop fires the waker.
func (r *registration) PollReadable(w api.Waker) (bool, error) {
	if r.p.isClosed() {
		return false, api.ErrSourceClosed
	}
	if e := r.events.Load(); e > r.acked.Load() {
		r.observed.Store(e)
		return true, nil
	}
	r.arm(w)
	if e := r.events.Load(); e > r.acked.Load() {
		r.disarm()
		r.observed.Store(e)
		return true, nil
	}
	if r.p.isClosed() {
		r.disarm()
		return false, api.ErrSourceClosed
	}
	return false, nil
}

// ClearReadable implements api.Registration. Single-consumer, like the
// listener that owns it.
func (r *registration) ClearReadable() {
	r.acked.Store(r.observed.Load())
}

// Close removes the descriptor from the interest set. Idempotent; after
// the poller itself has closed, only the bookkeeping remains.
func (r *registration) Close() error {
	r.p.mu.Lock()
	if _, live := r.p.regs[r.fd]; !live {
		r.p.mu.Unlock()
		return nil
	}
	delete(r.p.regs, r.fd)
	closed := r.p.closed
	r.p.mu.Unlock()
	if closed {
		return nil
	}
	if err := unix.EpollCtl(r.p.epfd, unix.EPOLL_CTL_DEL, int(r.fd), nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

func (r *registration) arm(w api.Waker) {
	r.mu.Lock()
	r.waker = w
	r.mu.Unlock()
}

func (r *registration) disarm() api.Waker {
	r.mu.Lock()
	w := r.waker
	r.waker = nil
	r.mu.Unlock()
	return w
}
