// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Components that measure elapsed time (the compositor's FPS meter,
// the snapshot sink's throttle, control-channel deadlines) take a
// Clock instead of calling the time package directly. Production
// wiring passes Real(); tests pass Fake() and move time with Advance,
// which makes rate calculations exact instead of sleep-dependent.
package clock
