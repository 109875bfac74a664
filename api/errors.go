// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types shared across the library.

package api

import "fmt"

// Common errors used across the library.
var (
	// ErrAlreadyRegistered is returned by ReadinessSource.Register when
	// the descriptor already has a live registration.
	ErrAlreadyRegistered = fmt.Errorf("descriptor already registered")

	// ErrSourceClosed is returned once the readiness source has shut
	// down; suspended callers are woken so they can observe it.
	ErrSourceClosed = fmt.Errorf("readiness source is closed")

	// ErrListenerClosed is returned by accept operations after the
	// listener has been closed.
	ErrListenerClosed = fmt.Errorf("listener is closed")

	// ErrPending reports the pending outcome of a poll-style call: no
	// value yet, interest registered, the waker will fire.
	ErrPending = fmt.Errorf("operation pending")

	// ErrNotSupported is returned by platform stubs.
	ErrNotSupported = fmt.Errorf("operation not supported")
)
