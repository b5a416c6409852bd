// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
)

// JoinHostPort formats a host and numeric port for net.Dial and
// net.Listen.
func JoinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// ListenUDP binds a UDP socket on address and asks the kernel for a
// receive buffer of requestedBuffer bytes. The kernel may clamp the
// request (net.core.rmem_max on Linux); the granted size is logged so
// an operator can see why datagrams are being dropped under load.
// A requestedBuffer of zero leaves the kernel default in place.
func ListenUDP(address string, requestedBuffer int, logger *slog.Logger) (*net.UDPConn, error) {
	local, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", address, err)
	}
	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", address, err)
	}

	if requestedBuffer > 0 {
		if err := conn.SetReadBuffer(requestedBuffer); err != nil {
			logger.Warn("setting UDP receive buffer failed",
				"address", address,
				"requested_bytes", requestedBuffer,
				"error", err,
			)
		}
	}
	granted, err := ReceiveBufferSize(conn)
	if err != nil {
		logger.Debug("reading UDP receive buffer size failed", "error", err)
	} else {
		logger.Info("UDP socket bound",
			"address", conn.LocalAddr().String(),
			"requested_buffer_bytes", requestedBuffer,
			"granted_buffer_bytes", granted,
		)
	}
	return conn, nil
}

// DialUDP opens an ephemeral UDP socket whose writes go to address.
func DialUDP(address string) (*net.UDPConn, error) {
	remote, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", address, err)
	}
	conn, err := net.DialUDP("udp", nil, remote)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", address, err)
	}
	return conn, nil
}
