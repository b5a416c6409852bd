// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern for channels. [Eventually] polls a condition for tests that
// observe counters advanced by other goroutines, such as a pipeline
// fed over a loopback socket. These helpers are the only place tests
// wait on wall-clock time; timing logic under test uses lib/clock's
// fake clock instead.
//
// [Logger] returns a logger that discards output.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
