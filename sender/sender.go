// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

// Package sender streams captured frames as tiles.
//
// Each frame is cut into the grid's rectangles in tile-index order.
// Every tile is compressed on its own, framed with its index, and
// written as one UDP datagram. Sending is fire-and-forget: a tile
// that fails to compress or transmit is logged and counted, and the
// rest of the frame still goes out. A framed tile larger than the
// datagram limit is never sent.
package sender

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/image/draw"
	"golang.org/x/time/rate"

	"github.com/eyeballs-video/eyeballs/capture"
	"github.com/eyeballs-video/eyeballs/control"
	"github.com/eyeballs-video/eyeballs/lib/netutil"
	"github.com/eyeballs-video/eyeballs/lib/tile"
	"github.com/eyeballs-video/eyeballs/lib/tilecodec"
	"github.com/eyeballs-video/eyeballs/lib/wire"
)

// Config configures a Sender.
type Config struct {
	// Address is the receiver's video socket, host:port.
	Address string

	Grid tile.Grid

	// MaxDatagram caps one framed message. Zero selects
	// wire.DefaultDatagramSize.
	MaxDatagram int

	// FrameRate caps frames per second in Run. Zero is uncapped.
	FrameRate float64

	// Frames stops Run after this many frames. Zero runs until
	// cancelled.
	Frames int
}

// FrameResult summarizes one SendFrame call.
type FrameResult struct {
	Tiles    int
	Errors   int
	Oversize int
	Bytes    int

	// Partial is set when ctx ended before every tile was attempted.
	// Partial frames are not counted in Stats.Frames.
	Partial bool
}

// Stats is a snapshot of cumulative counters.
type Stats struct {
	Frames          uint64 `cbor:"frames"`
	Tiles           uint64 `cbor:"tiles"`
	TileErrors      uint64 `cbor:"tile_errors"`
	Oversize        uint64 `cbor:"oversize"`
	Bytes           uint64 `cbor:"bytes"`
	SkippedCaptures uint64 `cbor:"skipped_captures"`
}

// Sender owns one UDP socket and the tile geometry for one stream.
type Sender struct {
	config   Config
	codec    tilecodec.Codec
	logger   *slog.Logger
	conn     *net.UDPConn
	rects    []tile.Rect
	manifest control.Manifest
	limiter  *rate.Limiter

	// mu serializes SendFrame so the framing buffer can be reused.
	mu     sync.Mutex
	buffer []byte

	frames          atomic.Uint64
	tiles           atomic.Uint64
	tileErrors      atomic.Uint64
	oversize        atomic.Uint64
	bytes           atomic.Uint64
	skippedCaptures atomic.Uint64
}

// New validates config and binds an ephemeral UDP socket aimed at
// config.Address.
func New(config Config, codec tilecodec.Codec, logger *slog.Logger) (*Sender, error) {
	if err := config.Grid.Validate(); err != nil {
		return nil, err
	}
	if config.MaxDatagram <= 0 {
		config.MaxDatagram = wire.DefaultDatagramSize
	}
	if config.MaxDatagram <= wire.HeaderSize {
		return nil, fmt.Errorf("max datagram %d leaves no room for a payload after the %d-byte header",
			config.MaxDatagram, wire.HeaderSize)
	}

	conn, err := netutil.DialUDP(config.Address)
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if config.FrameRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.FrameRate), 1)
	}

	logger.Info("sender ready",
		"destination", config.Address,
		"local", conn.LocalAddr().String(),
		"grid", config.Grid.String(),
		"codec", codec.Name(),
		"max_datagram", config.MaxDatagram,
	)

	return &Sender{
		config:   config,
		codec:    codec,
		logger:   logger,
		conn:     conn,
		rects:    config.Grid.Rects(),
		manifest: control.NewManifest(config.Grid, codec.Name(), config.MaxDatagram),
		limiter:  limiter,
		buffer:   make([]byte, 0, config.MaxDatagram),
	}, nil
}

// Manifest describes this sender's stream for the control handshake.
func (s *Sender) Manifest() control.Manifest { return s.manifest }

// Close releases the socket.
func (s *Sender) Close() error { return s.conn.Close() }

// SendFrame slices frame into tiles and sends each as one datagram.
// frame is expected to match the grid size; pixels outside its bounds
// read as transparent black.
func (s *Sender) SendFrame(ctx context.Context, frame image.Image) FrameResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result FrameResult
	origin := frame.Bounds().Min
	for index, rect := range s.rects {
		if ctx.Err() != nil {
			result.Partial = true
			return result
		}

		region := rect.Bounds().Add(origin)
		payload, err := s.codec.Compress(subImage(frame, region))
		if err != nil {
			result.Errors++
			s.tileErrors.Add(1)
			s.logger.Warn("tile compression failed", "tile_index", index, "error", err)
			continue
		}

		message := wire.Message{TileIndex: uint64(index), Payload: payload}
		if message.Size() > s.config.MaxDatagram {
			result.Oversize++
			s.oversize.Add(1)
			s.logger.Warn("tile exceeds datagram limit, not sent",
				"tile_index", index,
				"message_bytes", message.Size(),
				"max_datagram", s.config.MaxDatagram,
			)
			continue
		}

		s.buffer = wire.AppendMessage(s.buffer[:0], message)
		written, err := s.conn.Write(s.buffer)
		if err != nil {
			result.Errors++
			s.tileErrors.Add(1)
			s.logger.Debug("tile send failed", "tile_index", index, "error", err)
			continue
		}

		result.Tiles++
		result.Bytes += written
		s.tiles.Add(1)
		s.bytes.Add(uint64(written))
	}

	s.frames.Add(1)
	return result
}

// subImage returns the region of img, sharing pixels when the image
// type supports it.
func subImage(img image.Image, region image.Rectangle) image.Image {
	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok && region.In(img.Bounds()) {
		return sub.SubImage(region)
	}
	copied := image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
	draw.Draw(copied, copied.Bounds(), img, region.Min, draw.Src)
	return copied
}

// Run captures and sends frames until ctx is cancelled or
// config.Frames frames have been sent. A failed capture skips the
// cycle.
func (s *Sender) Run(ctx context.Context, source capture.Source) error {
	for sent := 0; s.config.Frames == 0 || sent < s.config.Frames; {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("pacing frames: %w", err)
			}
		}
		if ctx.Err() != nil {
			return nil
		}

		frame, err := source.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.skippedCaptures.Add(1)
			level := slog.LevelWarn
			if errors.Is(err, capture.ErrNoFrame) {
				level = slog.LevelDebug
			}
			s.logger.Log(ctx, level, "capture failed, skipping frame", "error", err)
			continue
		}

		result := s.SendFrame(ctx, frame)
		sent++
		if result.Errors > 0 || result.Oversize > 0 {
			s.logger.Debug("frame sent with losses",
				"tiles", result.Tiles,
				"errors", result.Errors,
				"oversize", result.Oversize,
			)
		}
	}
	return nil
}

// Stats returns the cumulative counters.
func (s *Sender) Stats() Stats {
	return Stats{
		Frames:          s.frames.Load(),
		Tiles:           s.tiles.Load(),
		TileErrors:      s.tileErrors.Load(),
		Oversize:        s.oversize.Load(),
		Bytes:           s.bytes.Load(),
		SkippedCaptures: s.skippedCaptures.Load(),
	}
}
