// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the tile message framing carried in UDP
// datagrams.
//
// A message is a 16-byte header followed by the payload:
//
//	[payload_length uint64][tile_index uint64][payload_length bytes]
//
// Both integers use the sending host's byte order. There is no magic
// number, version, or checksum. The sender writes exactly one message
// per datagram, but the receiver's Assembler accepts any split or
// merge of the byte stream across datagrams, holding partial messages
// until the rest arrives.
//
// Because the header carries no synchronization marker, foreign or
// corrupt traffic would otherwise desynchronize the stream forever.
// The Assembler bounds both the announced payload length and the bytes
// it will hold; exceeding either reports ErrDesync and discards the
// buffered bytes so the next datagram starts clean.
package wire
