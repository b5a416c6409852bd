// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

// Package workerpool admits goroutines against a fixed ceiling and
// joins them.
//
// Admission is one-shot: TryStart either starts the worker immediately
// or reports [ErrLimitReached]. Nothing is queued and nothing is
// retried. Every started worker releases its slot when its function
// returns, including when it panics, and [Governor.Wait] joins all of
// them and reports the failures.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ErrLimitReached is returned by TryStart when the governor is
// already running its maximum number of workers.
var ErrLimitReached = errors.New("workerpool: worker limit reached")

// Func is a worker body. It should return when ctx is cancelled.
type Func func(ctx context.Context) error

// Governor bounds the number of concurrently running workers.
type Governor struct {
	limit  int
	logger *slog.Logger

	mu     sync.Mutex
	active int
	errs   []error

	workers sync.WaitGroup
}

// New returns a governor admitting at most limit concurrent workers.
func New(limit int, logger *slog.Logger) *Governor {
	if limit <= 0 {
		panic(fmt.Sprintf("workerpool: limit must be positive, got %d", limit))
	}
	return &Governor{limit: limit, logger: logger}
}

// TryStart runs fn on a new goroutine if a slot is free. The check and
// the increment happen under one lock, so concurrent callers can never
// push the active count past the limit.
func (g *Governor) TryStart(ctx context.Context, name string, fn Func) error {
	g.mu.Lock()
	if g.active >= g.limit {
		active := g.active
		g.mu.Unlock()
		return fmt.Errorf("starting %s (%d of %d active): %w", name, active, g.limit, ErrLimitReached)
	}
	g.active++
	g.workers.Add(1)
	g.mu.Unlock()

	go g.run(ctx, name, fn)
	return nil
}

func (g *Governor) run(ctx context.Context, name string, fn Func) {
	var err error
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("worker %s panicked: %v", name, recovered)
			g.logger.Error("worker panicked",
				"worker", name,
				"panic", recovered,
				"stack", string(debug.Stack()),
			)
		}
		g.finish(name, err)
	}()

	g.logger.Debug("worker started", "worker", name)
	err = fn(ctx)
}

func (g *Governor) finish(name string, err error) {
	g.mu.Lock()
	g.active--
	if err != nil && !errors.Is(err, context.Canceled) {
		g.errs = append(g.errs, fmt.Errorf("%s: %w", name, err))
	}
	g.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		g.logger.Error("worker exited", "worker", name, "error", err)
	} else {
		g.logger.Debug("worker exited", "worker", name)
	}
	g.workers.Done()
}

// Active is the number of running workers.
func (g *Governor) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Limit is the admission ceiling.
func (g *Governor) Limit() int { return g.limit }

// Wait blocks until every started worker has returned, then reports
// their errors joined. Workers that returned nil or context.Canceled
// contribute nothing. The collected errors are cleared, so a governor
// can be reused after Wait.
func (g *Governor) Wait() error {
	g.workers.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	err := errors.Join(g.errs...)
	g.errs = nil
	return err
}
