// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package tilecodec

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
)

// JPEG is the lossy default codec.
type JPEG struct {
	quality int
}

// NewJPEG returns a JPEG codec at the given quality (1-100).
func NewJPEG(quality int) *JPEG { return &JPEG{quality: quality} }

func (c *JPEG) Name() string { return "jpeg" }

func (c *JPEG) Compress(img image.Image) ([]byte, error) {
	var buffer bytes.Buffer
	if err := jpeg.Encode(&buffer, img, &jpeg.Options{Quality: c.quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buffer.Bytes(), nil
}

func (c *JPEG) Decompress(data []byte) (image.Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("jpeg decode: %w", err)
	}
	return img, nil
}

// PNG is a lossless image codec.
type PNG struct {
	encoder png.Encoder
}

// NewPNG returns a PNG codec tuned for speed over ratio.
func NewPNG() *PNG {
	return &PNG{encoder: png.Encoder{CompressionLevel: png.BestSpeed}}
}

func (c *PNG) Name() string { return "png" }

func (c *PNG) Compress(img image.Image) ([]byte, error) {
	var buffer bytes.Buffer
	if err := c.encoder.Encode(&buffer, img); err != nil {
		return nil, fmt.Errorf("png encode: %w", err)
	}
	return buffer.Bytes(), nil
}

func (c *PNG) Decompress(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("png decode: %w", err)
	}
	return img, nil
}
