// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package netutil

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// ReceiveBufferSize reports the SO_RCVBUF value the kernel actually
// granted. Linux doubles the requested value to account for its own
// bookkeeping, so this is typically twice what SetReadBuffer asked for.
func ReceiveBufferSize(conn *net.UDPConn) (int, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("getting raw connection: %w", err)
	}
	var (
		size    int
		sockErr error
	)
	if err := raw.Control(func(fd uintptr) {
		size, sockErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF)
	}); err != nil {
		return 0, fmt.Errorf("accessing socket: %w", err)
	}
	if sockErr != nil {
		return 0, fmt.Errorf("getsockopt SO_RCVBUF: %w", sockErr)
	}
	return size, nil
}
