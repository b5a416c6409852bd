// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package display

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/eyeballs-video/eyeballs/lib/clock"
)

var testClockEpoch = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDrawFPSPaintsGreenNearOrigin(t *testing.T) {
	t.Parallel()
	frame := image.NewRGBA(image.Rect(0, 0, 120, 60))
	DrawFPS(frame, 42)

	green := 0
	for y := 0; y < 60; y++ {
		for x := 0; x < 120; x++ {
			pixel := frame.RGBAAt(x, y)
			if pixel == OverlayColor {
				green++
				// Glyphs sit on the baseline at y=25 and start at x=25.
				if x < OverlayOrigin.X || y > OverlayOrigin.Y+3 || y < OverlayOrigin.Y-13 {
					t.Fatalf("overlay pixel at (%d,%d) is outside the text box", x, y)
				}
			}
		}
	}
	if green == 0 {
		t.Fatal("DrawFPS painted nothing")
	}
}

func TestDrawFPSClipsOnTinyFrame(t *testing.T) {
	t.Parallel()
	frame := image.NewRGBA(image.Rect(0, 0, 10, 10))
	DrawFPS(frame, 99)
	for _, value := range frame.Pix {
		if value != 0 {
			t.Fatal("DrawFPS drew on a frame smaller than its origin")
		}
	}
}

func TestSnapshotThrottlesByClock(t *testing.T) {
	t.Parallel()
	fake := clock.Fake(testClockEpoch)
	path := filepath.Join(t.TempDir(), "frame.png")
	sink := NewSnapshot(path, time.Second, fake, testLogger())

	frame := image.NewRGBA(image.Rect(0, 0, 4, 4))
	frame.SetRGBA(1, 1, color.RGBA{200, 100, 50, 255})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := sink.Present(ctx, frame, 10); err != nil {
			t.Fatalf("Present: %v", err)
		}
	}
	if sink.Written() != 1 {
		t.Fatalf("Written = %d within one interval, want 1", sink.Written())
	}

	fake.Advance(time.Second)
	if err := sink.Present(ctx, frame, 10); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if sink.Written() != 2 {
		t.Fatalf("Written = %d after interval, want 2", sink.Written())
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer file.Close()
	decoded, err := png.Decode(file)
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if got := color.RGBAModel.Convert(decoded.At(1, 1)).(color.RGBA); got != (color.RGBA{200, 100, 50, 255}) {
		t.Errorf("snapshot pixel = %v", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("snapshot directory holds %d entries, want only the snapshot", len(entries))
	}
}

func TestSnapshotBadDirectory(t *testing.T) {
	t.Parallel()
	sink := NewSnapshot("/nonexistent/dir/frame.png", 0, clock.Real(), testLogger())
	if err := sink.Present(context.Background(), image.NewRGBA(image.Rect(0, 0, 1, 1)), 0); err == nil {
		t.Error("Present into a missing directory succeeded")
	}
}

func TestMulti(t *testing.T) {
	t.Parallel()
	var calls []string
	record := func(name string, err error) Sink {
		return SinkFunc(func(context.Context, *image.RGBA, int) error {
			calls = append(calls, name)
			return err
		})
	}
	errBroken := errors.New("broken")

	sink := Multi(record("a", nil), nil, record("b", errBroken), record("c", nil))
	err := sink.Present(context.Background(), image.NewRGBA(image.Rect(0, 0, 1, 1)), 5)
	if !errors.Is(err, errBroken) {
		t.Errorf("Present = %v, want errBroken", err)
	}
	if strings.Join(calls, "") != "abc" {
		t.Errorf("calls = %v, want every sink in order", calls)
	}

	if Multi() != Discard {
		t.Error("Multi() should be Discard")
	}
}

func TestDashboardRefreshAndQuit(t *testing.T) {
	t.Parallel()
	polls := 0
	provider := func() Metrics {
		polls++
		return Metrics{
			FPS:      polls,
			Session:  "abc",
			Counters: []Counter{{Name: "tiles", Value: uint64(polls * 10)}},
			Gauges:   []Gauge{{Name: "decode queue", Value: 15, Capacity: 30}},
		}
	}
	model := NewDashboard("cortex", time.Second, provider)

	updated, cmd := model.Update(refreshMsg(time.Now()))
	if cmd == nil {
		t.Fatal("refresh did not schedule the next tick")
	}
	view := updated.View()
	for _, want := range []string{"cortex", "tiles", "20", "decode queue", "15/30", "session abc"} {
		if !strings.Contains(view, want) {
			t.Errorf("View missing %q:\n%s", want, view)
		}
	}

	_, cmd = updated.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q produced no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestRenderGaugeFill(t *testing.T) {
	t.Parallel()
	tests := []struct {
		gauge      Gauge
		wantFilled int
	}{
		{Gauge{Value: 0, Capacity: 30}, 0},
		{Gauge{Value: 15, Capacity: 30}, 5},
		{Gauge{Value: 30, Capacity: 30}, 10},
		{Gauge{Value: 60, Capacity: 30}, 10},
		{Gauge{Value: 3, Capacity: 0}, 0},
	}
	for _, test := range tests {
		rendered := renderGauge(test.gauge, 10)
		if got := strings.Count(rendered, "█"); got != test.wantFilled {
			t.Errorf("renderGauge(%+v) filled %d cells, want %d", test.gauge, got, test.wantFilled)
		}
		if got := strings.Count(rendered, "░"); got != 10-test.wantFilled {
			t.Errorf("renderGauge(%+v) left %d empty cells, want %d", test.gauge, got, 10-test.wantFilled)
		}
	}
}
