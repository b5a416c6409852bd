// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

// Package queue provides the bounded FIFO used between pipeline
// stages. Put blocks while the queue is full and Get blocks while it is
// empty; there is no overwrite or drop policy. A full queue stalling
// its producer is the pipeline's only flow control.
package queue

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Bounded is a fixed-capacity FIFO safe for any number of producers
// and consumers.
type Bounded[T any] struct {
	items chan T
	// stalls counts Put calls that found the queue full and had to
	// wait. Read by stats without locking.
	stalls atomic.Uint64
}

// New returns a queue holding at most capacity items. capacity must be
// positive.
func New[T any](capacity int) *Bounded[T] {
	if capacity <= 0 {
		panic(fmt.Sprintf("queue: capacity must be positive, got %d", capacity))
	}
	return &Bounded[T]{items: make(chan T, capacity)}
}

// Put appends item, blocking while the queue is full. Returns
// ctx.Err() if ctx ends first; the item is then not enqueued.
func (q *Bounded[T]) Put(ctx context.Context, item T) error {
	select {
	case q.items <- item:
		return nil
	default:
	}

	q.stalls.Add(1)
	select {
	case q.items <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPut appends item if there is room and reports whether it did.
func (q *Bounded[T]) TryPut(item T) bool {
	select {
	case q.items <- item:
		return true
	default:
		return false
	}
}

// Get removes the oldest item, blocking while the queue is empty.
func (q *Bounded[T]) Get(ctx context.Context) (T, error) {
	select {
	case item := <-q.items:
		return item, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// GetWithin is Get bounded by a timeout channel (typically from
// clock.After). ok is false when timeout fires before an item arrives.
func (q *Bounded[T]) GetWithin(ctx context.Context, timeout <-chan time.Time) (item T, ok bool, err error) {
	select {
	case item = <-q.items:
		return item, true, nil
	case <-timeout:
		return item, false, nil
	case <-ctx.Done():
		return item, false, ctx.Err()
	}
}

// TryGet removes the oldest item without blocking.
func (q *Bounded[T]) TryGet() (T, bool) {
	select {
	case item := <-q.items:
		return item, true
	default:
		var zero T
		return zero, false
	}
}

// Len is the number of queued items.
func (q *Bounded[T]) Len() int { return len(q.items) }

// Cap is the fixed capacity.
func (q *Bounded[T]) Cap() int { return cap(q.items) }

// Stalls is the number of Put calls that waited on a full queue.
func (q *Bounded[T]) Stalls() uint64 { return q.stalls.Load() }
