// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package receiver

import (
	"context"
	"log/slog"

	"github.com/eyeballs-video/eyeballs/lib/queue"
	"github.com/eyeballs-video/eyeballs/lib/tilecodec"
)

// decoder decompresses tiles from the encoded queue into the decoded
// queue. Bad tiles are counted and dropped.
type decoder struct {
	codec     tilecodec.Codec
	tileCount int
	in        *queue.Bounded[EncodedTile]
	out       *queue.Bounded[DecodedTile]
	counters  *counters
	logger    *slog.Logger
}

func (w *decoder) run(ctx context.Context) error {
	for {
		encoded, err := w.in.Get(ctx)
		if err != nil {
			return nil
		}

		if encoded.Index < 0 || encoded.Index >= w.tileCount {
			w.counters.outOfRange.Add(1)
			w.logger.Warn("tile index outside grid, dropped",
				"tile_index", encoded.Index,
				"tile_count", w.tileCount,
			)
			continue
		}

		img, err := w.codec.Decompress(encoded.Payload)
		if err != nil {
			w.counters.decodeErrors.Add(1)
			w.logger.Debug("tile decode failed, dropped",
				"tile_index", encoded.Index,
				"payload_bytes", len(encoded.Payload),
				"error", err,
			)
			continue
		}
		w.counters.decoded.Add(1)

		if err := w.out.Put(ctx, DecodedTile{Index: encoded.Index, Image: img}); err != nil {
			return nil
		}
	}
}
