//go:build linux

// File: uds/sock_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Raw socket plumbing for Linux: non-blocking flags applied atomically
// at creation and acceptance via SOCK_NONBLOCK/SOCK_CLOEXEC.

package uds

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// listenBacklog matches the stdlib default cap for unix sockets.
const listenBacklog = unix.SOMAXCONN

// listenSocket creates a non-blocking listening socket bound to path.
func listenSocket(path string) (int, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("socket create: %w", err)
	}
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
	return unix.Accept4(lfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
}
