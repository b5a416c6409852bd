// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

// recorder captures Fatalf instead of stopping the test.
type recorder struct {
	failed  bool
	message string
}

func (r *recorder) Helper() {}

func (r *recorder) Fatalf(format string, args ...any) {
	r.failed = true
	r.message = fmt.Sprintf(format, args...)
	panic(r)
}

// capture runs fn and reports whether it called Fatalf.
func capture(fn func(t T)) (r *recorder) {
	r = &recorder{}
	defer func() {
		if recovered := recover(); recovered != nil && recovered != r {
			panic(recovered)
		}
	}()
	fn(r)
	return r
}

func TestRequireReceive(t *testing.T) {
	t.Parallel()
	ch := make(chan int, 1)
	ch <- 7
	if got := RequireReceive(t, ch, time.Second, "value"); got != 7 {
		t.Errorf("RequireReceive = %d, want 7", got)
	}

	r := capture(func(t T) { RequireReceive(t, make(chan int), 10*time.Millisecond, "tile %d", 3) })
	if !r.failed || r.message != "timed out after 10ms: tile 3" {
		t.Errorf("timeout recorded %+v", r)
	}
}

func TestRequireClosed(t *testing.T) {
	t.Parallel()
	ch := make(chan struct{})
	close(ch)
	RequireClosed(t, ch, time.Second)

	r := capture(func(t T) { RequireClosed(t, make(chan struct{}), 10*time.Millisecond) })
	if !r.failed {
		t.Error("RequireClosed did not fail on an open channel")
	}
}

func TestEventually(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	Eventually(t, time.Second, func() bool { return calls.Add(1) >= 3 })
	if calls.Load() != 3 {
		t.Errorf("condition evaluated %d times, want 3", calls.Load())
	}

	r := capture(func(t T) { Eventually(t, 10*time.Millisecond, func() bool { return false }, "never") })
	if !r.failed {
		t.Error("Eventually did not fail on a false condition")
	}
}
