// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

// Package display receives composite frames from the compositor.
//
// A [Sink] is handed a private copy of the composite, with the FPS
// figure already drawn on it, after every presented batch. Sinks
// must not block for long: the compositor presents on its own
// goroutine and a slow sink backs tiles up into the decode queue.
package display

import (
	"context"
	"errors"
	"image"
)

// Sink consumes presented frames. frame is owned by the sink for the
// duration of the call only.
type Sink interface {
	Present(ctx context.Context, frame *image.RGBA, fps int) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, frame *image.RGBA, fps int) error

// Present calls f.
func (f SinkFunc) Present(ctx context.Context, frame *image.RGBA, fps int) error {
	return f(ctx, frame, fps)
}

type discard struct{}

func (discard) Present(context.Context, *image.RGBA, int) error { return nil }

// Discard drops every frame.
var Discard Sink = discard{}

type multi []Sink

// Multi presents to each sink in order and joins their errors. Nil
// sinks are skipped.
func Multi(sinks ...Sink) Sink {
	var kept multi
	for _, sink := range sinks {
		if sink != nil {
			kept = append(kept, sink)
		}
	}
	if len(kept) == 0 {
		return Discard
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return kept
}

func (m multi) Present(ctx context.Context, frame *image.RGBA, fps int) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Present(ctx, frame, fps); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
