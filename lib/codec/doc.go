// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the single CBOR configuration shared by the
// command/control channel. Requests, responses, and the stream
// manifest all go through Marshal/Unmarshal or the stream
// Encoder/Decoder here so both ends agree on encoding options.
//
// Tile payloads do not use this package: they travel in the raw
// 16-byte framed format of lib/wire.
package codec
