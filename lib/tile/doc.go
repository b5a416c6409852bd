// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

// Package tile partitions a frame into a grid of rectangular tiles.
//
// The enumeration order of Compute is the tile-index contract between
// sender and receiver: the outer loop walks columns left to right, the
// inner loop walks rows top to bottom. Index i on the wire always
// means the i-th rect of that order for the agreed grid. Grid.Fingerprint
// lets both ends confirm they agree on the grid before streaming.
//
// Tile sizes use integer division. When the frame does not divide
// evenly, the remainder on the right and bottom edges belongs to no
// tile and is never written by the receiver.
package tile
