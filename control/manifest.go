// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/eyeballs-video/eyeballs/lib/codec"
	"github.com/eyeballs-video/eyeballs/lib/tile"
)

// Manifest describes a tiled stream. The sender publishes it before
// streaming so the receiver can confirm that tile index i means the
// same rectangle on both ends.
type Manifest struct {
	// Session identifies one sender run.
	Session string `cbor:"session"`

	Grid tile.Grid `cbor:"grid"`

	// Fingerprint is Grid.Fingerprint(), sent separately so a receiver
	// can compare without recomputing.
	Fingerprint string `cbor:"fingerprint"`

	// Codec is the tilecodec name tiles are compressed with.
	Codec string `cbor:"codec"`

	// MaxDatagram is the largest message the sender will transmit.
	MaxDatagram int `cbor:"max_datagram"`
}

// NewManifest describes a stream with a fresh session ID.
func NewManifest(grid tile.Grid, codecName string, maxDatagram int) Manifest {
	return Manifest{
		Session:     uuid.NewString(),
		Grid:        grid,
		Fingerprint: grid.Fingerprint(),
		Codec:       codecName,
		MaxDatagram: maxDatagram,
	}
}

// HandshakeResponse is the data of an accepted manifest.
type HandshakeResponse struct {
	Session string `cbor:"session"`

	// VideoPort is the UDP port the receiver reads tiles on.
	VideoPort int `cbor:"video_port"`
}

// CheckManifest reports whether offered can be decoded by a receiver
// expecting expected. The fingerprint is recomputed from the offered
// grid so a sender cannot claim a grid it does not use.
func CheckManifest(expected, offered Manifest) error {
	if offered.Fingerprint != offered.Grid.Fingerprint() {
		return fmt.Errorf("%w: fingerprint %s does not match offered grid %v",
			ErrManifestMismatch, offered.Fingerprint, offered.Grid)
	}
	if offered.Fingerprint != expected.Grid.Fingerprint() {
		return fmt.Errorf("%w: sender grid %v, receiver grid %v",
			ErrManifestMismatch, offered.Grid, expected.Grid)
	}
	if offered.Codec != expected.Codec {
		return fmt.Errorf("%w: sender codec %q, receiver codec %q",
			ErrManifestMismatch, offered.Codec, expected.Codec)
	}
	if expected.MaxDatagram > 0 && offered.MaxDatagram > expected.MaxDatagram {
		return fmt.Errorf("%w: sender datagrams up to %d bytes, receiver accepts %d",
			ErrManifestMismatch, offered.MaxDatagram, expected.MaxDatagram)
	}
	return nil
}

// ManifestHandler returns the manifest action. Accepted manifests are
// passed to onAccept (which may be nil) and answered with the
// receiver's video port.
func ManifestHandler(expected Manifest, videoPort int, onAccept func(Manifest)) ActionFunc {
	return func(ctx context.Context, raw []byte) (any, error) {
		var request struct {
			Manifest Manifest `cbor:"manifest"`
		}
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, fmt.Errorf("decoding manifest: %w", err)
		}
		if err := CheckManifest(expected, request.Manifest); err != nil {
			return nil, err
		}
		if onAccept != nil {
			onAccept(request.Manifest)
		}
		return HandshakeResponse{Session: request.Manifest.Session, VideoPort: videoPort}, nil
	}
}

// StatsHandler returns the stats action, answering with whatever
// snapshot returns.
func StatsHandler(snapshot func() any) ActionFunc {
	return func(context.Context, []byte) (any, error) {
		return snapshot(), nil
	}
}
