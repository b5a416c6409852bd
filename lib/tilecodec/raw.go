// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package tilecodec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies how a raw payload's pixel bytes are stored.
// The tag is the first payload byte; changing values breaks
// compatibility with running senders.
type Compression uint8

const (
	// CompressionNone stores RGBA bytes verbatim. Chosen automatically
	// when compression would not shrink the tile (noise, gradients
	// with dithering).
	CompressionNone Compression = 0

	// CompressionLZ4 is LZ4 block compression.
	CompressionLZ4 Compression = 1

	// CompressionZstd is zstd at the default level.
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// rawHeaderSize is tag (1) + width (4) + height (4).
const rawHeaderSize = 9

// maxRawDimension bounds decoded tile sides so a corrupt header cannot
// request an enormous allocation.
const maxRawDimension = 1 << 14

var errIncompressible = errors.New("data is incompressible")

// zstd.Encoder and zstd.Decoder are safe for concurrent use with
// EncodeAll/DecodeAll, so one of each serves every tile.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("tilecodec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("tilecodec: zstd decoder initialization failed: " + err.Error())
	}
}

// Raw sends uncompressed RGBA pixels through a general-purpose
// compressor. Lossless.
type Raw struct {
	compression Compression
}

// NewRaw returns a raw codec using the given compression.
func NewRaw(compression Compression) *Raw { return &Raw{compression: compression} }

func (c *Raw) Name() string { return c.compression.String() }

func (c *Raw) Compress(img image.Image) ([]byte, error) {
	rgba := toRGBA(img)
	width, height := rgba.Rect.Dx(), rgba.Rect.Dy()

	tag := c.compression
	var body []byte
	var err error
	switch tag {
	case CompressionLZ4:
		body, err = compressLZ4(rgba.Pix)
	case CompressionZstd:
		body, err = compressZstd(rgba.Pix)
	case CompressionNone:
		body = rgba.Pix
	default:
		return nil, fmt.Errorf("unsupported compression %s", tag)
	}
	if errors.Is(err, errIncompressible) {
		tag, body, err = CompressionNone, rgba.Pix, nil
	}
	if err != nil {
		return nil, err
	}

	payload := make([]byte, rawHeaderSize, rawHeaderSize+len(body))
	payload[0] = byte(tag)
	binary.BigEndian.PutUint32(payload[1:5], uint32(width))
	binary.BigEndian.PutUint32(payload[5:9], uint32(height))
	return append(payload, body...), nil
}

func (c *Raw) Decompress(data []byte) (image.Image, error) {
	if len(data) < rawHeaderSize {
		return nil, fmt.Errorf("raw tile: %d bytes is shorter than the header", len(data))
	}
	tag := Compression(data[0])
	width := int(binary.BigEndian.Uint32(data[1:5]))
	height := int(binary.BigEndian.Uint32(data[5:9]))
	if width <= 0 || height <= 0 || width > maxRawDimension || height > maxRawDimension {
		return nil, fmt.Errorf("raw tile: invalid dimensions %dx%d", width, height)
	}
	size := width * height * 4
	body := data[rawHeaderSize:]

	var pixels []byte
	var err error
	switch tag {
	case CompressionNone:
		if len(body) != size {
			return nil, fmt.Errorf("raw tile: %d pixel bytes, want %d", len(body), size)
		}
		pixels = append([]byte(nil), body...)
	case CompressionLZ4:
		pixels, err = decompressLZ4(body, size)
	case CompressionZstd:
		pixels, err = decompressZstd(body, size)
	default:
		return nil, fmt.Errorf("raw tile: unsupported compression %s", tag)
	}
	if err != nil {
		return nil, err
	}

	return &image.RGBA{
		Pix:    pixels,
		Stride: 4 * width,
		Rect:   image.Rect(0, 0, width, height),
	}, nil
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock reports 0 for incompressible input.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(compressed []byte, size int) ([]byte, error) {
	destination := make([]byte, size)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != size {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, want %d", read, size)
	}
	return destination, nil
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(compressed []byte, size int) ([]byte, error) {
	destination, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(destination) != size {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, want %d", len(destination), size)
	}
	return destination, nil
}
