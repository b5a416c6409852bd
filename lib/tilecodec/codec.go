// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package tilecodec

import (
	"fmt"
	"image"
	"sort"

	"golang.org/x/image/draw"
)

// Codec compresses and decompresses tile images. Implementations are
// safe for concurrent use.
type Codec interface {
	// Name is the identifier carried in the stream manifest.
	Name() string

	// Compress encodes the pixels of img within img.Bounds().
	Compress(img image.Image) ([]byte, error)

	// Decompress decodes a payload produced by Compress. The result's
	// bounds start at the origin.
	Decompress(data []byte) (image.Image, error)
}

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 90

var constructors = map[string]func(quality int) Codec{
	"jpeg": func(quality int) Codec { return NewJPEG(quality) },
	"png":  func(int) Codec { return NewPNG() },
	"lz4":  func(int) Codec { return NewRaw(CompressionLZ4) },
	"zstd": func(int) Codec { return NewRaw(CompressionZstd) },
}

// New returns the codec registered under name. quality only affects
// lossy codecs; zero selects DefaultQuality.
func New(name string, quality int) (Codec, error) {
	constructor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown tile codec %q (available: %v)", name, Names())
	}
	if quality == 0 {
		quality = DefaultQuality
	}
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("tile codec quality %d out of range 1-100", quality)
	}
	return constructor(quality), nil
}

// Names lists the registered codec names in sorted order.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// toRGBA returns img as an *image.RGBA whose bounds start at the
// origin, copying only when needed.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) &&
		rgba.Stride == 4*rgba.Rect.Dx() {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Copy(rgba, image.Point{}, img, bounds, draw.Src, nil)
	return rgba
}
