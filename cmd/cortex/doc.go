// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

// Cortex is the viewer side of an eyeballs stream. It serves the
// control channel on the command port, reads tiles from the video
// port, and maintains the composite frame. The composite is written to
// a PNG snapshot and, with --dashboard, its counters are shown in a
// terminal dashboard.
//
// Cortex runs until SIGINT or SIGTERM (or until the dashboard is
// closed) and exits only after every worker has stopped.
package main
