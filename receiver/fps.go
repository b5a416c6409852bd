// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package receiver

import (
	"time"

	"github.com/eyeballs-video/eyeballs/lib/clock"
)

// fpsMeter estimates the display rate from the tile rate: every
// interval tiles it reports trunc(interval / elapsed seconds). With
// more than one tile per frame this overstates frames per second by
// the tile count; it is a liveness figure, not a frame counter.
type fpsMeter struct {
	clock    clock.Clock
	interval int

	count int
	since time.Time
	fps   int
}

func newFPSMeter(clk clock.Clock, interval int) *fpsMeter {
	return &fpsMeter{clock: clk, interval: interval, since: clk.Now()}
}

// tick records one tile and reports whether the estimate changed.
func (m *fpsMeter) tick() bool {
	m.count++
	if m.count < m.interval {
		return false
	}
	now := m.clock.Now()
	elapsed := now.Sub(m.since).Seconds()
	if elapsed > 0 {
		m.fps = int(float64(m.count) / elapsed)
	}
	m.count = 0
	m.since = now
	return true
}

func (m *fpsMeter) value() int { return m.fps }
