// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

// Package tilecodec compresses one tile's pixels into a datagram
// payload and back.
//
// Four codecs are available by name:
//
//   - "jpeg": lossy, the default; quality 1-100.
//   - "png": lossless, slower, useful on static content.
//   - "lz4": raw RGBA through LZ4 block compression. Lossless and fast.
//   - "zstd": raw RGBA through zstd. Lossless, better ratio than lz4.
//
// Sender and receiver must use the same codec; the manifest handshake
// on the control channel carries its name. Payloads are self-contained
// (each carries its own dimensions), so tiles decode independently and
// in any order.
package tilecodec
