// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

// Package fake provides scripted test doubles for the api contracts.
package fake

import (
	"sync"

	"github.com/momentics/hioload-uds/api"
)

// ReadinessSource is a hand-driven api.ReadinessSource: tests flip
// readiness and observe clears instead of waiting on a kernel.
type ReadinessSource struct {
	mu          sync.Mutex
	regs        map[uintptr]*Registration
	registerErr error
}

// NewReadinessSource returns an empty scripted source.
func NewReadinessSource() *ReadinessSource {
	return &ReadinessSource{regs: make(map[uintptr]*Registration)}
}

// FailRegister makes every subsequent Register call fail with err.
func (s *ReadinessSource) FailRegister(err error) {
	s.mu.Lock()
	s.registerErr = err
	s.mu.Unlock()
}

// Register implements api.ReadinessSource.
func (s *ReadinessSource) Register(fd uintptr) (api.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	if _, dup := s.regs[fd]; dup {
		return nil, api.ErrAlreadyRegistered
	}
	r := &Registration{}
	s.regs[fd] = r
	return r, nil
}

// Reg returns the registration recorded for fd, nil when absent.
func (s *ReadinessSource) Reg(fd uintptr) *Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[fd]
}

// Registration records poll/clear traffic and lets tests script
// readiness transitions.
type Registration struct {
	mu      sync.Mutex
	ready   bool
	waker   api.Waker
	clears  int
	polls   int
	closed  bool
	pollErr error
}

// PollReadable implements api.Registration.
func (r *Registration) PollReadable(w api.Waker) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls++
	if r.pollErr != nil {
		return false, r.pollErr
	}
	if r.ready {
		return true, nil
	}
	r.waker = w
	return false, nil
}

// ClearReadable implements api.Registration.
func (r *Registration) ClearReadable() {
	r.mu.Lock()
	r.ready = false
	r.clears++
	r.mu.Unlock()
}

// Close implements api.Registration.
func (r *Registration) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// SetReadable flags readiness and fires the armed waker, mirroring a
// reactor's dispatch of one readiness report.
func (r *Registration) SetReadable() {
	r.mu.Lock()
	r.ready = true
	w := r.waker
	r.waker = nil
	r.mu.Unlock()
	if w != nil {
		w.Wake()
	}
}

// FailPolls makes every subsequent PollReadable call fail with err.
func (r *Registration) FailPolls(err error) {
	r.mu.Lock()
	r.pollErr = err
	r.mu.Unlock()
}

// Clears reports how many times readiness was acknowledged.
func (r *Registration) Clears() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clears
}

// Polls reports how many times readiness was queried.
func (r *Registration) Polls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.polls
}

// Armed reports whether a waker is currently parked.
func (r *Registration) Armed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waker != nil
}

// Closed reports whether the registration was deregistered.
func (r *Registration) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
