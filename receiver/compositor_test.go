// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package receiver

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/eyeballs-video/eyeballs/display"
	"github.com/eyeballs-video/eyeballs/lib/clock"
	"github.com/eyeballs-video/eyeballs/lib/queue"
	"github.com/eyeballs-video/eyeballs/lib/testutil"
	"github.com/eyeballs-video/eyeballs/lib/tile"
)

var testClockEpoch = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

// noisyFrame returns a frame of pseudo-random pixels so every tile is
// distinguishable.
func noisyFrame(width, height int, seed uint64) *image.RGBA {
	random := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	frame := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := range frame.Pix {
		frame.Pix[i] = uint8(random.UintN(256))
	}
	return frame
}

// tilesOf cuts frame into the grid's tiles in index order.
func tilesOf(frame *image.RGBA, grid tile.Grid) []DecodedTile {
	var tiles []DecodedTile
	for index, rect := range grid.Rects() {
		tiles = append(tiles, DecodedTile{Index: index, Image: frame.SubImage(rect.Bounds())})
	}
	return tiles
}

type recordingSink struct {
	mu     sync.Mutex
	frames []*image.RGBA
	fps    []int
	onCall func()
}

func (r *recordingSink) Present(ctx context.Context, frame *image.RGBA, fps int) error {
	r.mu.Lock()
	r.frames = append(r.frames, frame)
	r.fps = append(r.fps, fps)
	onCall := r.onCall
	r.mu.Unlock()
	if onCall != nil {
		onCall()
	}
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func TestOutOfOrderCompositingMatchesInOrder(t *testing.T) {
	t.Parallel()
	grid := tile.Grid{Columns: 3, Rows: 2, Width: 96, Height: 64}
	tiles := tilesOf(noisyFrame(96, 64, 7), grid)

	inOrder := NewCompositor(CompositorConfig{Grid: grid}, queue.New[DecodedTile](1), nil, testutil.Logger())
	for _, decoded := range tiles {
		if err := inOrder.Apply(decoded); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}

	random := rand.New(rand.NewPCG(1, 2))
	for trial := 0; trial < 20; trial++ {
		shuffled := append([]DecodedTile(nil), tiles...)
		random.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		outOfOrder := NewCompositor(CompositorConfig{Grid: grid}, queue.New[DecodedTile](1), nil, testutil.Logger())
		for _, decoded := range shuffled {
			if err := outOfOrder.Apply(decoded); err != nil {
				t.Fatalf("Apply: %v", err)
			}
		}
		if !bytes.Equal(inOrder.Snapshot().Pix, outOfOrder.Snapshot().Pix) {
			t.Fatalf("trial %d: composite depends on tile order", trial)
		}
	}
}

func TestApplyKeepsPreviousPixelsForMissingTiles(t *testing.T) {
	t.Parallel()
	grid := tile.Grid{Columns: 2, Rows: 1, Width: 20, Height: 10}
	compositor := NewCompositor(CompositorConfig{Grid: grid}, queue.New[DecodedTile](1), nil, testutil.Logger())

	first := tilesOf(noisyFrame(20, 10, 1), grid)
	second := tilesOf(noisyFrame(20, 10, 2), grid)
	compositor.Apply(first[0])
	compositor.Apply(first[1])
	compositor.Apply(second[0])

	snapshot := compositor.Snapshot()
	wantLeft := second[0].Image.(*image.RGBA)
	wantRight := first[1].Image.(*image.RGBA)
	if snapshot.RGBAAt(3, 3) != wantLeft.RGBAAt(3, 3) {
		t.Error("left tile was not replaced by the newer frame")
	}
	if snapshot.RGBAAt(13, 3) != wantRight.RGBAAt(13, 3) {
		t.Error("right tile lost the previous frame's pixels")
	}
}

func TestApplyClipsOversizeTile(t *testing.T) {
	t.Parallel()
	grid := tile.Grid{Columns: 2, Rows: 1, Width: 20, Height: 10}
	compositor := NewCompositor(CompositorConfig{Grid: grid}, queue.New[DecodedTile](1), nil, testutil.Logger())

	big := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for i := range big.Pix {
		big.Pix[i] = 0xff
	}
	if err := compositor.Apply(DecodedTile{Index: 0, Image: big}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	snapshot := compositor.Snapshot()
	if snapshot.RGBAAt(9, 9) != (color.RGBA{255, 255, 255, 255}) {
		t.Error("tile did not fill its rectangle")
	}
	if snapshot.RGBAAt(10, 0) != (color.RGBA{}) {
		t.Error("oversize tile spilled into the neighbouring rectangle")
	}
}

func TestApplyRejectsIndexOutsideGrid(t *testing.T) {
	t.Parallel()
	grid := tile.Grid{Columns: 1, Rows: 1, Width: 4, Height: 4}
	compositor := NewCompositor(CompositorConfig{Grid: grid}, queue.New[DecodedTile](1), nil, testutil.Logger())
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for _, index := range []int{-1, 1, 99} {
		if err := compositor.Apply(DecodedTile{Index: index, Image: img}); err == nil {
			t.Errorf("Apply(index %d) succeeded", index)
		}
	}
}

func TestFPSMeter(t *testing.T) {
	t.Parallel()
	fake := clock.Fake(testClockEpoch)
	meter := newFPSMeter(fake, 10)

	for i := 0; i < 9; i++ {
		if meter.tick() {
			t.Fatalf("tick %d reported a measurement before the interval", i)
		}
	}
	fake.Advance(4 * time.Second)
	if !meter.tick() {
		t.Fatal("tenth tick did not measure")
	}
	// trunc(10 / 4s) = 2
	if meter.value() != 2 {
		t.Errorf("fps = %d, want 2", meter.value())
	}

	fake.Advance(500 * time.Millisecond)
	for i := 0; i < 10; i++ {
		meter.tick()
	}
	if meter.value() != 20 {
		t.Errorf("fps = %d, want 20", meter.value())
	}
}

func TestPresentAlwaysOverlaysCopy(t *testing.T) {
	t.Parallel()
	grid := tile.Grid{Columns: 2, Rows: 1, Width: 100, Height: 40}
	sink := &recordingSink{}
	compositor := NewCompositor(CompositorConfig{Grid: grid}, queue.New[DecodedTile](1), sink, testutil.Logger())

	black := image.NewRGBA(image.Rect(0, 0, 50, 40))
	compositor.Apply(DecodedTile{Index: 0, Image: black})
	compositor.present(context.Background())

	if sink.count() != 1 {
		t.Fatalf("presented %d frames, want 1 with one of two tiles written", sink.count())
	}
	if !hasColor(sink.frames[0], display.OverlayColor) {
		t.Error("presented frame has no FPS overlay")
	}
	if hasColor(compositor.Snapshot(), display.OverlayColor) {
		t.Error("FPS overlay leaked into the composite")
	}
}

func TestRequireCompleteWaitsForEveryTile(t *testing.T) {
	t.Parallel()
	grid := tile.Grid{Columns: 3, Rows: 1, Width: 30, Height: 10}
	sink := &recordingSink{}
	compositor := NewCompositor(CompositorConfig{Grid: grid, Policy: RequireComplete}, queue.New[DecodedTile](1), sink, testutil.Logger())
	tiles := tilesOf(noisyFrame(30, 10, 3), grid)
	ctx := context.Background()

	compositor.Apply(tiles[0])
	compositor.Apply(tiles[0])
	compositor.Apply(tiles[2])
	compositor.present(ctx)
	if sink.count() != 0 {
		t.Fatal("presented before tile 1 arrived")
	}

	compositor.Apply(tiles[1])
	compositor.present(ctx)
	if sink.count() != 1 {
		t.Fatalf("presented %d frames once complete, want 1", sink.count())
	}

	// The next presentation needs a full set again.
	compositor.Apply(tiles[1])
	compositor.present(ctx)
	if sink.count() != 1 {
		t.Error("presented again without a complete set")
	}
}

func TestRunPresentsOncePerBatch(t *testing.T) {
	t.Parallel()
	grid := tile.Grid{Columns: 3, Rows: 1, Width: 30, Height: 10}
	in := queue.New[DecodedTile](8)
	for _, decoded := range tilesOf(noisyFrame(30, 10, 4), grid) {
		in.TryPut(decoded)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &recordingSink{onCall: cancel}
	compositor := NewCompositor(CompositorConfig{Grid: grid, PollInterval: 10 * time.Millisecond}, in, sink, testutil.Logger())

	done := make(chan error, 1)
	go func() { done <- compositor.Run(ctx) }()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "Run did not return"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sink.count() != 1 {
		t.Fatalf("presented %d times, want one presentation for the batch", sink.count())
	}
	if in.Len() != 0 {
		t.Errorf("%d tiles left in the queue after the batch", in.Len())
	}
	if compositor.Presented() != 1 {
		t.Errorf("Presented = %d", compositor.Presented())
	}
}

func TestRunReturnsOnCancelWithoutTiles(t *testing.T) {
	t.Parallel()
	fake := clock.Fake(testClockEpoch)
	grid := tile.Grid{Columns: 1, Rows: 1, Width: 4, Height: 4}
	compositor := NewCompositor(CompositorConfig{Grid: grid, Clock: fake}, queue.New[DecodedTile](1), nil, testutil.Logger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- compositor.Run(ctx) }()

	// Let a few poll timeouts expire so the loop cycles.
	for i := 0; i < 3; i++ {
		fake.WaitForTimers(1)
		fake.Advance(100 * time.Millisecond)
	}
	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "Run did not notice cancellation"); err != nil {
		t.Errorf("Run = %v", err)
	}
}

func hasColor(img *image.RGBA, want color.RGBA) bool {
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		for x := img.Rect.Min.X; x < img.Rect.Max.X; x++ {
			if img.RGBAAt(x, y) == want {
				return true
			}
		}
	}
	return false
}
