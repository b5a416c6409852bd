// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package netutil

import (
	"errors"
	"net"
)

// ReceiveBufferSize is not available on this platform.
func ReceiveBufferSize(conn *net.UDPConn) (int, error) {
	return 0, errors.New("receive buffer size is not observable on this platform")
}
