// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/eyeballs-video/eyeballs/lib/clock"
	"github.com/eyeballs-video/eyeballs/lib/codec"
	"github.com/eyeballs-video/eyeballs/lib/testutil"
	"github.com/eyeballs-video/eyeballs/lib/tile"
)

var testClockEpoch = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// startServer listens on a loopback port and serves until the test
// ends. Returns the address to dial.
func startServer(t *testing.T, server *Server) string {
	t.Helper()
	if err := server.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, "") }()
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, done, 5*time.Second, "Serve to return after cancellation"); err != nil {
			t.Errorf("Serve: %v", err)
		}
	})
	return server.Addr().String()
}

func dial(t *testing.T, address string) *Client {
	t.Helper()
	client, err := Dial(context.Background(), address)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

var testGrid = tile.Grid{Columns: 2, Rows: 1, Width: 480, Height: 360}

func TestPingReportsClock(t *testing.T) {
	t.Parallel()
	server := NewServer(ServerOptions{Clock: clock.Fake(testClockEpoch)}, testLogger())
	client := dial(t, startServer(t, server))

	response, err := client.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if response.UnixMilli != testClockEpoch.UnixMilli() {
		t.Errorf("UnixMilli = %d, want %d", response.UnixMilli, testClockEpoch.UnixMilli())
	}
	if response.Version == "" {
		t.Error("Version is empty")
	}
}

func TestPersistentConnectionCarriesManyRequests(t *testing.T) {
	t.Parallel()
	server := NewServer(ServerOptions{}, testLogger())
	calls := 0
	server.Handle("count", func(context.Context, []byte) (any, error) {
		calls++
		return map[string]int{"calls": calls}, nil
	})
	client := dial(t, startServer(t, server))

	for want := 1; want <= 3; want++ {
		var result struct {
			Calls int `cbor:"calls"`
		}
		if err := client.Call(context.Background(), "count", nil, &result); err != nil {
			t.Fatalf("Call #%d: %v", want, err)
		}
		if result.Calls != want {
			t.Errorf("calls = %d, want %d", result.Calls, want)
		}
	}
}

func TestUnknownAction(t *testing.T) {
	t.Parallel()
	server := NewServer(ServerOptions{}, testLogger())
	client := dial(t, startServer(t, server))

	err := client.Call(context.Background(), "teleport", nil, nil)
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("Call = %v, want *CallError", err)
	}
	if !strings.Contains(callErr.Message, `unknown action "teleport"`) {
		t.Errorf("Message = %q", callErr.Message)
	}
	if errors.Is(err, ErrManifestMismatch) {
		t.Error("unknown action should not match ErrManifestMismatch")
	}

	if _, err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping after failed call: %v", err)
	}
}

func TestMissingActionField(t *testing.T) {
	t.Parallel()
	server := NewServer(ServerOptions{}, testLogger())
	address := startServer(t, server)

	conn, err := net.DialTimeout("tcp", address, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(map[string]any{"hello": "world"}); err != nil {
		t.Fatalf("writing request: %v", err)
	}
	var response Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if response.OK || response.Error != "missing required field: action" {
		t.Errorf("response = %+v", response)
	}
}

func TestOversizeRequestClosesConnection(t *testing.T) {
	t.Parallel()
	server := NewServer(ServerOptions{MaxRequest: 64}, testLogger())
	client := dial(t, startServer(t, server))

	err := client.Call(context.Background(), ActionPing, map[string]any{"padding": strings.Repeat("x", 1024)}, nil)
	if err == nil {
		t.Fatal("oversize request succeeded")
	}
}

func TestAdmissionLimit(t *testing.T) {
	t.Parallel()
	server := NewServer(ServerOptions{MaxConnections: 2}, testLogger())
	address := startServer(t, server)

	first := dial(t, address)
	second := dial(t, address)
	for _, client := range []*Client{first, second} {
		if _, err := client.Ping(context.Background()); err != nil {
			t.Fatalf("Ping on admitted connection: %v", err)
		}
	}

	third := dial(t, address)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := third.Ping(ctx); err == nil {
		t.Fatal("third connection was served past the limit")
	}
	if server.Active() != 2 {
		t.Errorf("Active = %d, want 2", server.Active())
	}

	// Freeing a slot admits the next connection.
	first.Close()
	testutil.Eventually(t, 5*time.Second, func() bool { return server.Active() == 1 },
		"Active to drop to 1 after close")
	fourth := dial(t, address)
	if _, err := fourth.Ping(context.Background()); err != nil {
		t.Errorf("Ping after slot freed: %v", err)
	}
}

func TestIdleTimeoutClosesConnection(t *testing.T) {
	t.Parallel()
	server := NewServer(ServerOptions{IdleTimeout: 50 * time.Millisecond}, testLogger())
	address := startServer(t, server)

	conn, err := net.DialTimeout("tcp", address, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buffer := make([]byte, 1)
	if _, err := conn.Read(buffer); !errors.Is(err, io.EOF) {
		t.Errorf("Read on idle connection = %v, want EOF after server timeout", err)
	}
}

func TestHandshakeAccepted(t *testing.T) {
	t.Parallel()
	expected := NewManifest(testGrid, "jpeg", 20480)
	var accepted []Manifest
	server := NewServer(ServerOptions{}, testLogger())
	server.Handle(ActionManifest, ManifestHandler(expected, 9999, func(m Manifest) {
		accepted = append(accepted, m)
	}))
	client := dial(t, startServer(t, server))

	offered := NewManifest(testGrid, "jpeg", 20480)
	response, err := client.Handshake(context.Background(), offered)
	if err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	if response.Session != offered.Session || response.VideoPort != 9999 {
		t.Errorf("response = %+v", response)
	}
	if len(accepted) != 1 || accepted[0].Grid != testGrid {
		t.Errorf("accepted = %+v", accepted)
	}
}

func TestHandshakeRejectsMismatchedGrid(t *testing.T) {
	t.Parallel()
	server := NewServer(ServerOptions{}, testLogger())
	server.Handle(ActionManifest, ManifestHandler(NewManifest(testGrid, "jpeg", 20480), 9999, nil))
	client := dial(t, startServer(t, server))

	other := tile.Grid{Columns: 1, Rows: 3, Width: 480, Height: 360}
	_, err := client.Handshake(context.Background(), NewManifest(other, "jpeg", 20480))
	if !errors.Is(err, ErrManifestMismatch) {
		t.Fatalf("Handshake = %v, want ErrManifestMismatch", err)
	}
}

func TestCheckManifest(t *testing.T) {
	t.Parallel()
	expected := NewManifest(testGrid, "png", 20480)

	forged := NewManifest(testGrid, "png", 20480)
	forged.Grid.Columns = 3

	tests := []struct {
		name    string
		offered Manifest
		wantErr bool
	}{
		{"match", NewManifest(testGrid, "png", 20480), false},
		{"smaller datagrams", NewManifest(testGrid, "png", 1024), false},
		{"codec", NewManifest(testGrid, "zstd", 20480), true},
		{"grid", NewManifest(tile.Grid{Columns: 2, Rows: 2, Width: 480, Height: 360}, "png", 20480), true},
		{"forged fingerprint", forged, true},
		{"larger datagrams", NewManifest(testGrid, "png", 40000), true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := CheckManifest(expected, test.offered)
			if test.wantErr != (err != nil) {
				t.Fatalf("CheckManifest = %v, wantErr %v", err, test.wantErr)
			}
			if err != nil && !errors.Is(err, ErrManifestMismatch) {
				t.Errorf("CheckManifest = %v, want ErrManifestMismatch", err)
			}
		})
	}
}

func TestNewManifestSessionsAreUnique(t *testing.T) {
	t.Parallel()
	a := NewManifest(testGrid, "jpeg", 1)
	b := NewManifest(testGrid, "jpeg", 1)
	if a.Session == b.Session {
		t.Error("two manifests share a session ID")
	}
	if a.Fingerprint != testGrid.Fingerprint() {
		t.Error("manifest fingerprint differs from grid fingerprint")
	}
}

func TestStatsHandler(t *testing.T) {
	t.Parallel()
	server := NewServer(ServerOptions{}, testLogger())
	server.Handle(ActionStats, StatsHandler(func() any {
		return map[string]uint64{"tiles": 42}
	}))
	client := dial(t, startServer(t, server))

	var stats map[string]uint64
	if err := client.Stats(context.Background(), &stats); err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["tiles"] != 42 {
		t.Errorf("stats = %v", stats)
	}
}

func TestDuplicateHandlerPanics(t *testing.T) {
	t.Parallel()
	server := NewServer(ServerOptions{}, testLogger())
	defer func() {
		if recover() == nil {
			t.Error("registering ping twice did not panic")
		}
	}()
	server.Handle(ActionPing, func(context.Context, []byte) (any, error) { return nil, nil })
}
