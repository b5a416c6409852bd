// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

// Eyeball is the sensor side of an eyeballs stream. It captures frames
// from a test pattern or an image directory, scales them to the
// configured size, and streams them tile by tile over UDP to a cortex.
//
// Before streaming, eyeball offers its stream manifest (grid, codec,
// grid fingerprint, session ID) on the cortex's control channel. A
// cortex configured for a different grid or codec refuses the
// handshake and eyeball exits without sending video.
package main
