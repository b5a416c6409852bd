// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package display

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/eyeballs-video/eyeballs/lib/clock"
)

// Snapshot writes presented frames to a PNG file, at most once per
// interval. The file is replaced atomically so a reader never sees a
// partial image.
type Snapshot struct {
	path     string
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	last    time.Time
	written uint64
}

// NewSnapshot returns a sink writing to path. An interval of zero
// writes every frame.
func NewSnapshot(path string, interval time.Duration, clk clock.Clock, logger *slog.Logger) *Snapshot {
	return &Snapshot{path: path, interval: interval, clock: clk, logger: logger}
}

// Present writes frame if the interval has elapsed since the last
// write.
func (s *Snapshot) Present(ctx context.Context, frame *image.RGBA, fps int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if s.written > 0 && now.Sub(s.last) < s.interval {
		return nil
	}

	if err := writePNG(s.path, frame); err != nil {
		return err
	}
	s.last = now
	s.written++
	s.logger.Debug("snapshot written", "path", s.path, "fps", fps)
	return nil
}

// Written is the number of snapshots written.
func (s *Snapshot) Written() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

func writePNG(path string, frame *image.RGBA) error {
	temporary, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	defer os.Remove(temporary.Name())

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(temporary, frame); err != nil {
		temporary.Close()
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(temporary.Name(), path); err != nil {
		return fmt.Errorf("replacing snapshot %s: %w", path, err)
	}
	return nil
}
