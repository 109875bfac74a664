//go:build darwin

// File: uds/sock_darwin.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Raw socket plumbing for Darwin: no SOCK_NONBLOCK/Accept4 there, so the
// flags are applied after creation and after each accept.

package uds

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const listenBacklog = unix.SOMAXCONN

// listenSocket creates a non-blocking listening socket bound to path.
func listenSocket(path string) (int, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, fmt.Errorf("socket create: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("set nonblock: %w", err)
	}
	unix.CloseOnExec(fd)
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("bind %s: %w", path, err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("listen %s: %w", path, err)
	}
	return fd, nil
}

// acceptSocket performs exactly one non-blocking accept attempt.
func acceptSocket(lfd int) (int, unix.Sockaddr, error) {
	nfd, sa, err := unix.Accept(lfd)
	if err != nil {
		return -1, nil, err
	}
	if err := unix.SetNonblock(nfd, true); err != nil {
		unix.Close(nfd)
		return -1, nil, err
	}
	unix.CloseOnExec(nfd)
	return nfd, sa, nil
}
