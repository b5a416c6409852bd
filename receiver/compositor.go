// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package receiver

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"github.com/eyeballs-video/eyeballs/display"
	"github.com/eyeballs-video/eyeballs/lib/clock"
	"github.com/eyeballs-video/eyeballs/lib/queue"
	"github.com/eyeballs-video/eyeballs/lib/tile"
)

// CompositorConfig configures a Compositor. Zero values select the
// defaults noted on each field.
type CompositorConfig struct {
	Grid tile.Grid

	// PollInterval bounds each wait for a tile. Default: 100ms.
	PollInterval time.Duration

	// FPSInterval is the number of tiles between FPS measurements.
	// Default: 10.
	FPSInterval int

	// Policy decides when to present. Default: PresentAlways.
	Policy CompletenessPolicy

	// Clock drives the FPS meter and poll timeouts. Default:
	// clock.Real().
	Clock clock.Clock
}

// Compositor owns the composite frame and presents it.
type Compositor struct {
	config CompositorConfig
	rects  []tile.Rect
	in     *queue.Bounded[DecodedTile]
	sink   display.Sink
	logger *slog.Logger

	// counters may be shared with a Pipeline.
	counters *counters

	// mu guards composite against Snapshot; Apply and present run on
	// the Run goroutine only.
	mu        sync.Mutex
	composite *image.RGBA

	written      []bool
	writtenCount int
	fps          *fpsMeter
}

// NewCompositor returns a compositor reading from in and presenting
// to sink (nil discards). The composite starts black.
func NewCompositor(config CompositorConfig, in *queue.Bounded[DecodedTile], sink display.Sink, logger *slog.Logger) *Compositor {
	return newCompositor(config, in, sink, logger, &counters{})
}

func newCompositor(config CompositorConfig, in *queue.Bounded[DecodedTile], sink display.Sink, logger *slog.Logger, shared *counters) *Compositor {
	if config.PollInterval <= 0 {
		config.PollInterval = 100 * time.Millisecond
	}
	if config.FPSInterval <= 0 {
		config.FPSInterval = 10
	}
	if config.Policy == "" {
		config.Policy = PresentAlways
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if sink == nil {
		sink = display.Discard
	}
	rects := config.Grid.Rects()
	return &Compositor{
		config:    config,
		rects:     rects,
		in:        in,
		sink:      sink,
		logger:    logger,
		counters:  shared,
		composite: image.NewRGBA(config.Grid.Bounds()),
		written:   make([]bool, len(rects)),
		fps:       newFPSMeter(config.Clock, config.FPSInterval),
	}
}

// Run composites and presents until ctx is cancelled. Each wait for a
// tile is bounded by PollInterval so cancellation is noticed even
// when no tiles arrive.
func (c *Compositor) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		first, ok, err := c.in.GetWithin(ctx, c.config.Clock.After(c.config.PollInterval))
		if err != nil {
			return nil
		}
		if !ok {
			continue
		}

		c.applyLogged(first)
		for {
			next, ok := c.in.TryGet()
			if !ok {
				break
			}
			c.applyLogged(next)
		}

		c.present(ctx)
	}
}

func (c *Compositor) applyLogged(decoded DecodedTile) {
	if err := c.Apply(decoded); err != nil {
		c.logger.Warn("tile not composited", "tile_index", decoded.Index, "error", err)
	}
}

// Apply writes one tile into the composite at its rectangle. A tile
// image larger than the rectangle is clipped; a smaller one leaves the
// uncovered pixels unchanged. Writes are idempotent per rectangle, so
// the order tiles are applied in does not affect the final composite.
func (c *Compositor) Apply(decoded DecodedTile) error {
	if decoded.Index < 0 || decoded.Index >= len(c.rects) {
		c.counters.outOfRange.Add(1)
		return fmt.Errorf("tile index %d outside grid of %d tiles", decoded.Index, len(c.rects))
	}
	rect := c.rects[decoded.Index]

	c.mu.Lock()
	draw.Draw(c.composite, rect.Bounds(), decoded.Image, decoded.Image.Bounds().Min, draw.Src)
	c.mu.Unlock()

	if !c.written[decoded.Index] {
		c.written[decoded.Index] = true
		c.writtenCount++
	}
	c.counters.composited.Add(1)
	if c.fps.tick() {
		c.counters.fps.Store(int64(c.fps.value()))
	}
	return nil
}

// present hands a copy of the composite, with the FPS drawn on it, to
// the sink.
func (c *Compositor) present(ctx context.Context) {
	if c.config.Policy == RequireComplete {
		if c.writtenCount < len(c.rects) {
			return
		}
		clear(c.written)
		c.writtenCount = 0
	}

	frame := c.Snapshot()
	fps := c.fps.value()
	display.DrawFPS(frame, fps)
	if err := c.sink.Present(ctx, frame, fps); err != nil {
		c.counters.presentErrors.Add(1)
		c.logger.Warn("presenting frame failed", "error", err)
		return
	}
	c.counters.presented.Add(1)
}

// Snapshot returns a copy of the composite without the FPS overlay.
func (c *Compositor) Snapshot() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	frame := image.NewRGBA(c.composite.Rect)
	copy(frame.Pix, c.composite.Pix)
	return frame
}

// FPS is the latest estimate.
func (c *Compositor) FPS() int {
	return int(c.counters.fps.Load())
}

// Presented is the number of frames handed to the sink.
func (c *Compositor) Presented() uint64 {
	return c.counters.presented.Load()
}
