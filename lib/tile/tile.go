// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package tile

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"image"

	"github.com/zeebo/blake3"
)

// Rect is the half-open pixel bounds [MinX, MaxX) × [MinY, MaxY) of
// one tile within a frame.
type Rect struct {
	MinX, MaxX int
	MinY, MaxY int
}

// Width returns MaxX - MinX.
func (r Rect) Width() int { return r.MaxX - r.MinX }

// Height returns MaxY - MinY.
func (r Rect) Height() int { return r.MaxY - r.MinY }

// Bounds converts r to an image.Rectangle.
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(r.MinX, r.MinY, r.MaxX, r.MaxY)
}

func (r Rect) String() string {
	return fmt.Sprintf("[%d,%d)x[%d,%d)", r.MinX, r.MaxX, r.MinY, r.MaxY)
}

// Compute returns the tiles of a columns × rows grid over a
// width × height frame in index order (columns outer, rows inner).
// Callers must ensure columns <= width and rows <= height; otherwise
// the result contains zero-sized rects.
func Compute(columns, rows, width, height int) []Rect {
	if columns <= 0 || rows <= 0 {
		return nil
	}
	tileWidth := width / columns
	tileHeight := height / rows

	rects := make([]Rect, 0, columns*rows)
	for x := 0; x < columns; x++ {
		for y := 0; y < rows; y++ {
			rects = append(rects, Rect{
				MinX: tileWidth * x,
				MaxX: tileWidth * (x + 1),
				MinY: tileHeight * y,
				MaxY: tileHeight * (y + 1),
			})
		}
	}
	return rects
}

// Grid is a tile layout for frames of a fixed size.
type Grid struct {
	Columns int `yaml:"columns" cbor:"columns"`
	Rows    int `yaml:"rows" cbor:"rows"`
	Width   int `yaml:"width" cbor:"width"`
	Height  int `yaml:"height" cbor:"height"`
}

// Validate rejects grids that would produce empty tiles.
func (g Grid) Validate() error {
	switch {
	case g.Columns <= 0 || g.Rows <= 0:
		return fmt.Errorf("tile grid %dx%d: columns and rows must be positive", g.Columns, g.Rows)
	case g.Width <= 0 || g.Height <= 0:
		return fmt.Errorf("tile grid frame %dx%d: width and height must be positive", g.Width, g.Height)
	case g.Columns > g.Width:
		return fmt.Errorf("tile grid: %d columns exceed frame width %d", g.Columns, g.Width)
	case g.Rows > g.Height:
		return fmt.Errorf("tile grid: %d rows exceed frame height %d", g.Rows, g.Height)
	}
	return nil
}

// Rects returns Compute for this grid.
func (g Grid) Rects() []Rect {
	return Compute(g.Columns, g.Rows, g.Width, g.Height)
}

// Count is the number of tiles per frame.
func (g Grid) Count() int { return g.Columns * g.Rows }

// Bounds is the full frame rectangle, including any unmapped strip.
func (g Grid) Bounds() image.Rectangle { return image.Rect(0, 0, g.Width, g.Height) }

// Unmapped returns the width of the right-hand strip and the height of
// the bottom strip that no tile covers.
func (g Grid) Unmapped() (right, bottom int) {
	if g.Columns <= 0 || g.Rows <= 0 {
		return g.Width, g.Height
	}
	return g.Width % g.Columns, g.Height % g.Rows
}

// Fingerprint is a short hex BLAKE3 digest of the grid dimensions.
// Two ends with equal fingerprints enumerate identical tile indices.
func (g Grid) Fingerprint() string {
	var encoded [32]byte
	binary.BigEndian.PutUint64(encoded[0:8], uint64(g.Columns))
	binary.BigEndian.PutUint64(encoded[8:16], uint64(g.Rows))
	binary.BigEndian.PutUint64(encoded[16:24], uint64(g.Width))
	binary.BigEndian.PutUint64(encoded[24:32], uint64(g.Height))
	digest := blake3.Sum256(encoded[:])
	return hex.EncodeToString(digest[:16])
}

func (g Grid) String() string {
	return fmt.Sprintf("%dx%d tiles over %dx%d", g.Columns, g.Rows, g.Width, g.Height)
}
