// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package uds implements readiness-gated acceptance for Unix domain
// stream sockets.
//
// A Listener owns one non-blocking listening descriptor and one
// registration with a readiness source (see package reactor). Acceptance
// is a suspension point: when no connection is pending the caller is
// parked and resumed on the next readiness report, never busy-polled.
// Readiness reports are level-triggered and may be stale; the accept path
// absorbs empty reports by clearing the readiness flag and re-arming, so
// spurious wake-ups are invisible to callers.
//
// Incoming wraps a Listener as an infinite pull-based sequence of accept
// outcomes. Per-accept errors are items, not terminators: the sequence
// keeps serving the socket after a failed accept.
package uds
