// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness source backing the acceptance
// layer: an epoll demultiplexer on Linux, a stub elsewhere. Readiness is
// reported as a standing per-descriptor flag that persists until the
// owner acknowledges it, backed by edge-triggered kernel notifications.
package reactor
