// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed message header length: payload length plus
// tile index, eight bytes each.
const HeaderSize = 16

// DefaultDatagramSize is the largest datagram the sender emits by
// default. Tile size and codec quality must keep each message under
// it; messages are never fragmented.
const DefaultDatagramSize = 20 * 1024

// DefaultMaxPayload caps the payload length an Assembler accepts when
// no tighter bound is configured.
const DefaultMaxPayload = 16 * 1024 * 1024

// ByteOrder is the integer encoding of the header. Host order, so
// sender and receiver must share endianness.
var ByteOrder binary.ByteOrder = binary.NativeEndian

// Message is one framed tile.
type Message struct {
	TileIndex uint64
	Payload   []byte
}

// Size returns the encoded length of m.
func (m Message) Size() int { return HeaderSize + len(m.Payload) }

// AppendMessage appends the encoding of m to dst.
func AppendMessage(dst []byte, m Message) []byte {
	var header [HeaderSize]byte
	ByteOrder.PutUint64(header[0:8], uint64(len(m.Payload)))
	ByteOrder.PutUint64(header[8:16], m.TileIndex)
	dst = append(dst, header[:]...)
	return append(dst, m.Payload...)
}

// Marshal returns the encoding of m in a new slice.
func Marshal(m Message) []byte {
	return AppendMessage(make([]byte, 0, m.Size()), m)
}

// Unmarshal decodes exactly one message from data. Trailing bytes are
// an error; use an Assembler for streams.
func Unmarshal(data []byte) (Message, error) {
	if len(data) < HeaderSize {
		return Message{}, fmt.Errorf("wire: %d bytes is shorter than the %d-byte header", len(data), HeaderSize)
	}
	length := ByteOrder.Uint64(data[0:8])
	if length != uint64(len(data)-HeaderSize) {
		return Message{}, fmt.Errorf("wire: header announces %d payload bytes, datagram carries %d", length, len(data)-HeaderSize)
	}
	return Message{
		TileIndex: ByteOrder.Uint64(data[8:16]),
		Payload:   data[HeaderSize:],
	}, nil
}
