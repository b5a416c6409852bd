// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"errors"
	"fmt"
)

// ErrDesync reports that the accumulated bytes cannot be a valid
// message stream. The Assembler has already discarded its buffer when
// it returns this error.
var ErrDesync = errors.New("wire: stream desynchronized")

// Assembler reconstructs messages from a sequence of datagrams. It is
// not safe for concurrent use; each intake worker owns one.
type Assembler struct {
	buffer      []byte
	maxPayload  uint64
	maxBuffered int
	discarded   uint64
}

// NewAssembler returns an Assembler rejecting payloads longer than
// maxPayload and holding at most maxBuffered unconsumed bytes between
// Feed calls. Non-positive values select DefaultMaxPayload and
// HeaderSize+maxPayload respectively.
func NewAssembler(maxPayload, maxBuffered int) *Assembler {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	if maxBuffered <= 0 {
		maxBuffered = HeaderSize + maxPayload
	}
	return &Assembler{
		maxPayload:  uint64(maxPayload),
		maxBuffered: maxBuffered,
	}
}

// Feed appends data to the accumulation buffer and returns every
// message it completes, in stream order. Bytes of a trailing partial
// message stay buffered for the next call. Returned payloads do not
// alias the buffer or data.
//
// On ErrDesync the messages completed before the bad header are still
// returned and the remaining buffer is dropped.
func (a *Assembler) Feed(data []byte) ([]Message, error) {
	a.buffer = append(a.buffer, data...)

	var messages []Message
	offset := 0
	for len(a.buffer)-offset >= HeaderSize {
		header := a.buffer[offset : offset+HeaderSize]
		length := ByteOrder.Uint64(header[0:8])
		if length > a.maxPayload {
			dropped := len(a.buffer) - offset
			a.drop(dropped)
			return messages, fmt.Errorf("%w: payload length %d exceeds limit %d (dropped %d bytes)",
				ErrDesync, length, a.maxPayload, dropped)
		}
		end := offset + HeaderSize + int(length)
		if len(a.buffer) < end {
			break
		}
		payload := make([]byte, length)
		copy(payload, a.buffer[offset+HeaderSize:end])
		messages = append(messages, Message{
			TileIndex: ByteOrder.Uint64(header[8:16]),
			Payload:   payload,
		})
		offset = end
	}

	// Shift the held-over partial message to the front so the backing
	// array does not grow with total traffic.
	remaining := copy(a.buffer, a.buffer[offset:])
	a.buffer = a.buffer[:remaining]

	if remaining > a.maxBuffered {
		a.drop(remaining)
		return messages, fmt.Errorf("%w: %d buffered bytes exceed limit %d",
			ErrDesync, remaining, a.maxBuffered)
	}
	return messages, nil
}

// Buffered returns the number of bytes held for an incomplete message.
func (a *Assembler) Buffered() int { return len(a.buffer) }

// Discarded returns the total bytes dropped by desync recovery.
func (a *Assembler) Discarded() uint64 { return a.discarded }

// Reset drops any buffered bytes.
func (a *Assembler) Reset() { a.drop(len(a.buffer)) }

func (a *Assembler) drop(n int) {
	a.discarded += uint64(n)
	a.buffer = a.buffer[:0]
}
