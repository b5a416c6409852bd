// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/eyeballs-video/eyeballs/lib/netutil"
	"github.com/eyeballs-video/eyeballs/lib/queue"
	"github.com/eyeballs-video/eyeballs/lib/wire"
)

// intake moves datagrams from the socket into the encoded queue.
type intake struct {
	conn      *net.UDPConn
	assembler *wire.Assembler
	out       *queue.Bounded[EncodedTile]
	readSize  int
	counters  *counters
	logger    *slog.Logger
}

// run reads until the socket is closed. A read error other than the
// shutdown close ends the worker and is returned.
func (w *intake) run(ctx context.Context) error {
	buffer := make([]byte, w.readSize)
	for {
		n, _, err := w.conn.ReadFromUDP(buffer)
		if err != nil {
			if ctx.Err() != nil || netutil.IsExpectedCloseError(err) {
				return nil
			}
			return fmt.Errorf("receiving datagram: %w", err)
		}
		w.counters.datagrams.Add(1)
		w.counters.bytesReceived.Add(uint64(n))

		messages, err := w.assembler.Feed(buffer[:n])
		if err != nil {
			if !errors.Is(err, wire.ErrDesync) {
				return err
			}
			w.counters.desyncs.Add(1)
			w.counters.discardedBytes.Store(w.assembler.Discarded())
			w.logger.Warn("tile stream desynchronized, buffer reset", "error", err)
		}

		for _, message := range messages {
			w.counters.messages.Add(1)
			tile := EncodedTile{Index: tileIndex(message.TileIndex), Payload: message.Payload}
			if err := w.out.Put(ctx, tile); err != nil {
				return nil
			}
		}
	}
}

// tileIndex converts a wire index to an int, mapping values that do
// not fit to -1 so range checks reject them.
func tileIndex(index uint64) int {
	if index > uint64(maxTileIndex) {
		return -1
	}
	return int(index)
}

const maxTileIndex = 1<<31 - 1
