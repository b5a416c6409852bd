// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

// Package capture produces the frames an eyeball streams.
//
// A [Source] yields one frame per call and may fail; the sender skips
// the cycle on any error. Two sources are provided: [Pattern], a
// synthetic moving test card that needs no hardware, and [Directory],
// which cycles through the still images in a directory. [Scaled]
// wraps any source so its frames match the stream's frame size.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/draw"
)

// ErrNoFrame reports that a source had nothing to deliver this cycle.
var ErrNoFrame = errors.New("capture: no frame available")

// Source yields frames on demand.
type Source interface {
	Capture(ctx context.Context) (image.Image, error)
}

// Open returns the source described by spec: "pattern" for the
// synthetic test card, or "dir:<path>" for an image directory.
// width and height size the test card; directory images keep their
// own size until scaled.
func Open(spec string, width, height int) (Source, error) {
	switch {
	case spec == "pattern":
		return NewPattern(width, height), nil
	case strings.HasPrefix(spec, "dir:"):
		return NewDirectory(strings.TrimPrefix(spec, "dir:"))
	default:
		return nil, fmt.Errorf("unknown capture source %q (want pattern or dir:<path>)", spec)
	}
}

type scaled struct {
	source Source
	width  int
	height int
}

// Scaled returns a source whose frames are resized to width × height.
// Frames already at that size pass through untouched.
func Scaled(source Source, width, height int) Source {
	return &scaled{source: source, width: width, height: height}
}

func (s *scaled) Capture(ctx context.Context) (image.Image, error) {
	frame, err := s.source.Capture(ctx)
	if err != nil {
		return nil, err
	}
	return Resize(frame, s.width, s.height), nil
}

// Resize scales img to width × height with bilinear interpolation.
// The result starts at the origin.
func Resize(img image.Image, width, height int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height && bounds.Min == (image.Point{}) {
		return img
	}
	resized := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Src, nil)
	return resized
}
