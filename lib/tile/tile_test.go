// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package tile

import (
	"image"
	"testing"
)

func TestComputeTwoColumns(t *testing.T) {
	t.Parallel()
	rects := Compute(2, 1, 480, 360)
	want := []Rect{
		{MinX: 0, MaxX: 240, MinY: 0, MaxY: 360},
		{MinX: 240, MaxX: 480, MinY: 0, MaxY: 360},
	}
	if len(rects) != len(want) {
		t.Fatalf("got %d rects, want %d", len(rects), len(want))
	}
	for i := range want {
		if rects[i] != want[i] {
			t.Errorf("rect %d: got %v, want %v", i, rects[i], want[i])
		}
		if rects[i].Width() != 240 || rects[i].Height() != 360 {
			t.Errorf("rect %d: size %dx%d, want 240x360", i, rects[i].Width(), rects[i].Height())
		}
	}
}

func TestComputeOrderColumnsOuter(t *testing.T) {
	t.Parallel()
	rects := Compute(2, 3, 60, 90)
	// Index 1 is the second row of the first column, not the second column.
	if rects[1] != (Rect{MinX: 0, MaxX: 30, MinY: 30, MaxY: 60}) {
		t.Errorf("rect 1 = %v, want first column, second row", rects[1])
	}
	if rects[3] != (Rect{MinX: 30, MaxX: 60, MinY: 0, MaxY: 30}) {
		t.Errorf("rect 3 = %v, want second column, first row", rects[3])
	}
}

func TestComputePartitions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		columns, rows, width, height int
	}{
		{1, 1, 1, 1},
		{1, 3, 480, 360},
		{2, 1, 480, 360},
		{3, 3, 100, 100},
		{4, 2, 641, 479},
		{7, 5, 7, 5},
		{5, 7, 33, 50},
	}
	for _, test := range tests {
		grid := Grid{Columns: test.columns, Rows: test.rows, Width: test.width, Height: test.height}
		t.Run(grid.String(), func(t *testing.T) {
			t.Parallel()
			rects := grid.Rects()
			if len(rects) != test.columns*test.rows {
				t.Fatalf("got %d rects, want %d", len(rects), test.columns*test.rows)
			}

			coverage := make([]int, test.width*test.height)
			for _, rect := range rects {
				for y := rect.MinY; y < rect.MaxY; y++ {
					for x := rect.MinX; x < rect.MaxX; x++ {
						coverage[y*test.width+x]++
					}
				}
			}

			right, bottom := grid.Unmapped()
			if right != test.width%test.columns || bottom != test.height%test.rows {
				t.Errorf("Unmapped = (%d,%d), want (%d,%d)", right, bottom,
					test.width%test.columns, test.height%test.rows)
			}
			mappedWidth := test.width - right
			mappedHeight := test.height - bottom

			uncovered := 0
			for y := 0; y < test.height; y++ {
				for x := 0; x < test.width; x++ {
					count := coverage[y*test.width+x]
					if count > 1 {
						t.Fatalf("pixel (%d,%d) covered %d times", x, y, count)
					}
					inMapped := x < mappedWidth && y < mappedHeight
					if inMapped && count != 1 {
						t.Fatalf("pixel (%d,%d) inside mapped area not covered", x, y)
					}
					if count == 0 {
						uncovered++
					}
				}
			}

			wantUncovered := test.width*test.height - mappedWidth*mappedHeight
			if uncovered != wantUncovered {
				t.Errorf("uncovered pixels = %d, want %d", uncovered, wantUncovered)
			}
		})
	}
}

func TestGridValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		grid    Grid
		wantErr bool
	}{
		{"default stream", Grid{Columns: 1, Rows: 3, Width: 480, Height: 360}, false},
		{"zero columns", Grid{Columns: 0, Rows: 1, Width: 10, Height: 10}, true},
		{"negative height", Grid{Columns: 1, Rows: 1, Width: 10, Height: -1}, true},
		{"columns exceed width", Grid{Columns: 11, Rows: 1, Width: 10, Height: 10}, true},
		{"rows exceed height", Grid{Columns: 1, Rows: 11, Width: 10, Height: 10}, true},
		{"one pixel tiles", Grid{Columns: 10, Rows: 10, Width: 10, Height: 10}, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			err := test.grid.Validate()
			if (err != nil) != test.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, test.wantErr)
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()
	a := Grid{Columns: 1, Rows: 3, Width: 480, Height: 360}
	b := Grid{Columns: 3, Rows: 1, Width: 480, Height: 360}
	if a.Fingerprint() != a.Fingerprint() {
		t.Error("fingerprint not stable")
	}
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("transposed grids share a fingerprint")
	}
	if len(a.Fingerprint()) != 32 {
		t.Errorf("fingerprint length = %d, want 32 hex chars", len(a.Fingerprint()))
	}
}

func TestRectBounds(t *testing.T) {
	t.Parallel()
	rect := Rect{MinX: 10, MaxX: 20, MinY: 5, MaxY: 25}
	if rect.Bounds() != image.Rect(10, 5, 20, 25) {
		t.Errorf("Bounds = %v", rect.Bounds())
	}
}
