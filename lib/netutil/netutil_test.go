// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"syscall"
	"testing"
	"time"
)

func TestIsExpectedCloseError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, true},
		{"wrapped closed", fmt.Errorf("reading: %w", net.ErrClosed), true},
		{"epipe", syscall.EPIPE, true},
		{"reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, true},
		{"refused", syscall.ECONNREFUSED, false},
		{"other", errors.New("disk on fire"), false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsExpectedCloseError(test.err); got != test.want {
				t.Errorf("IsExpectedCloseError(%v) = %v, want %v", test.err, got, test.want)
			}
		})
	}
}

func TestIsTimeout(t *testing.T) {
	t.Parallel()
	if !IsTimeout(fmt.Errorf("read: %w", os.ErrDeadlineExceeded)) {
		t.Error("IsTimeout(ErrDeadlineExceeded) = false")
	}
	if IsTimeout(io.EOF) {
		t.Error("IsTimeout(EOF) = true")
	}
}

func TestListenAndDialUDP(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	listener, err := ListenUDP("127.0.0.1:0", 64*1024, logger)
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer listener.Close()

	sender, err := DialUDP(listener.LocalAddr().String())
	if err != nil {
		t.Fatalf("DialUDP: %v", err)
	}
	defer sender.Close()

	if _, err := sender.Write([]byte("tile")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	listener.SetReadDeadline(time.Now().Add(5 * time.Second))
	buffer := make([]byte, 64)
	n, _, err := listener.ReadFromUDP(buffer)
	if err != nil {
		t.Fatalf("ReadFromUDP: %v", err)
	}
	if string(buffer[:n]) != "tile" {
		t.Errorf("received %q, want %q", buffer[:n], "tile")
	}
}

func TestJoinHostPort(t *testing.T) {
	t.Parallel()
	if got := JoinHostPort("::1", 9999); got != "[::1]:9999" {
		t.Errorf("JoinHostPort = %q", got)
	}
}
