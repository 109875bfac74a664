//go:build !linux
// +build !linux

// File: reactor/poller_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub readiness source for platforms without an epoll backend.

package reactor

import (
	"context"

	"github.com/momentics/hioload-uds/api"
)

// Poller is unavailable on this platform.
type Poller struct{}

// New reports the backend as unsupported.
func New() (*Poller, error) {
	return nil, api.ErrNotSupported
}

// Register implements api.ReadinessSource.
func (p *Poller) Register(fd uintptr) (api.Registration, error) {
	return nil, api.ErrNotSupported
}

// Serve returns immediately.
func (p *Poller) Serve(ctx context.Context) error {
	return api.ErrNotSupported
}

// Close is a no-op.
func (p *Poller) Close() error { return nil }
