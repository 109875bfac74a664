// File: api/poll.go
// Author: momentics <momentics@gmail.com>
//
// Readiness-source abstraction consumed by the acceptance layer.
// The source is level-triggered: a descriptor stays "readable" until the
// owner acknowledges the condition with ClearReadable.

package api

// Waker resumes a suspended caller. Wake is invoked at most once per
// arming, from the readiness source's serve goroutine; implementations
// must not block.
type Waker interface {
	Wake()
}

// Registration is the per-descriptor handle into a ReadinessSource.
type Registration interface {
	// PollReadable reports whether readiness is currently flagged.
	// When it returns false, w has been armed and will receive exactly
	// one Wake on the next readiness report for the descriptor.
	// Fails with ErrSourceClosed once the source has shut down.
	PollReadable(w Waker) (bool, error)

	// ClearReadable acknowledges the readiness flag. The clear is
	// visible to any PollReadable call that starts afterwards, so an
	// empty poll result followed by a re-arm cannot lose a wake-up.
	ClearReadable()

	// Close deregisters the descriptor from the source. Idempotent.
	Close() error
}

// ReadinessSource multiplexes OS readiness notifications for registered
// descriptors. One registration per descriptor; registering a descriptor
// twice fails with ErrAlreadyRegistered.
type ReadinessSource interface {
	Register(fd uintptr) (Registration, error)
}
