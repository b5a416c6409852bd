// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

// Package receiver reassembles a tiled stream into composite frames.
//
// The pipeline has three stages joined by bounded queues:
//
//	UDP socket → intake → encoded queue → decode → decoded queue → compositor → display sink
//
// Intake reads datagrams, feeds them to a [wire.Assembler], and queues
// every complete message. Decode workers decompress tiles. The
// compositor writes each tile into a persistent composite image at
// its grid rectangle and presents the result after every batch.
//
// Full queues block their producer; nothing is dropped inside the
// process. Loss happens only in the kernel, when the socket's receive
// buffer overflows while intake is blocked. Tiles may arrive in any
// order and from different frames; each write touches only its own
// rectangle, so the composite converges regardless of order.
//
// Intake and decode workers are goroutines admitted by a
// [workerpool.Governor]. The compositor runs on the goroutine that
// calls [Pipeline.Run], which returns only after every worker exits.
package receiver

import (
	"fmt"
	"image"
	"sync/atomic"

	"github.com/eyeballs-video/eyeballs/lib/config"
)

// EncodedTile is a framed message awaiting decompression.
type EncodedTile struct {
	Index   int
	Payload []byte
}

// DecodedTile is a decompressed tile awaiting compositing.
type DecodedTile struct {
	Index int
	Image image.Image
}

// CompletenessPolicy decides when the compositor presents.
type CompletenessPolicy string

const (
	// PresentAlways presents after every batch, even if the composite
	// mixes tiles from different frames.
	PresentAlways CompletenessPolicy = config.PresentAlways

	// RequireComplete presents only once every tile index has been
	// written since the previous presentation.
	RequireComplete CompletenessPolicy = config.RequireComplete
)

// ParseCompletenessPolicy accepts the configuration spelling. Empty
// selects PresentAlways.
func ParseCompletenessPolicy(name string) (CompletenessPolicy, error) {
	switch CompletenessPolicy(name) {
	case "", PresentAlways:
		return PresentAlways, nil
	case RequireComplete:
		return RequireComplete, nil
	default:
		return "", fmt.Errorf("unknown completeness policy %q (want %s or %s)", name, PresentAlways, RequireComplete)
	}
}

// counters are shared by every stage and read by Stats.
type counters struct {
	datagrams      atomic.Uint64
	bytesReceived  atomic.Uint64
	messages       atomic.Uint64
	desyncs        atomic.Uint64
	discardedBytes atomic.Uint64
	decoded        atomic.Uint64
	decodeErrors   atomic.Uint64
	outOfRange     atomic.Uint64
	composited     atomic.Uint64
	presented      atomic.Uint64
	presentErrors  atomic.Uint64
	fps            atomic.Int64
}
