// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"context"
	"image"
	"image/color"
	"sync"
)

// barColors are the classic SMPTE top-row bars.
var barColors = []color.RGBA{
	{192, 192, 192, 255},
	{192, 192, 0, 255},
	{0, 192, 192, 255},
	{0, 192, 0, 255},
	{192, 0, 192, 255},
	{192, 0, 0, 255},
	{0, 0, 192, 255},
}

// Pattern is a synthetic test card: vertical colour bars with a white
// block that sweeps one step right on every frame, so motion and tile
// boundaries are visible at the receiver.
type Pattern struct {
	width  int
	height int

	mu    sync.Mutex
	frame int
}

// NewPattern returns a test card source of the given size.
func NewPattern(width, height int) *Pattern {
	return &Pattern{width: width, height: height}
}

// Capture renders the next frame.
func (p *Pattern) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.width <= 0 || p.height <= 0 {
		return nil, ErrNoFrame
	}

	p.mu.Lock()
	frame := p.frame
	p.frame++
	p.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	for x := 0; x < p.width; x++ {
		bar := barColors[x*len(barColors)/p.width]
		for y := 0; y < p.height; y++ {
			img.SetRGBA(x, y, bar)
		}
	}

	block := max(p.width/8, 1)
	step := max(p.width/64, 1)
	left := (frame * step) % p.width
	top := p.height/2 - block/2
	white := color.RGBA{255, 255, 255, 255}
	for x := left; x < min(left+block, p.width); x++ {
		for y := max(top, 0); y < min(top+block, p.height); y++ {
			img.SetRGBA(x, y, white)
		}
	}
	return img, nil
}

// Frames is the number of frames rendered so far.
func (p *Pattern) Frames() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame
}
