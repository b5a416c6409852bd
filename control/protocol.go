// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"errors"
	"fmt"

	"github.com/eyeballs-video/eyeballs/lib/codec"
)

// Actions understood by the cortex.
const (
	ActionPing     = "ping"
	ActionManifest = "manifest"
	ActionStats    = "stats"
)

// codeManifestMismatch marks a response whose failure is
// ErrManifestMismatch so the client can restore the sentinel.
const codeManifestMismatch = "manifest_mismatch"

// ErrManifestMismatch reports that sender and receiver disagree on the
// tile grid or codec.
var ErrManifestMismatch = errors.New("control: manifest mismatch")

// ActionFunc processes one request. raw is the full CBOR request,
// including the "action" field. A non-nil result is marshaled into the
// response's data field.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// Response is the envelope for every reply.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Code  string           `cbor:"code,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// CallError is returned by Client.Call when the server answers ok=false.
type CallError struct {
	Action  string
	Code    string
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("control error on %q: %s", e.Action, e.Message)
}

// Unwrap exposes the sentinel named by Code, so errors.Is works across
// the connection.
func (e *CallError) Unwrap() error {
	if e.Code == codeManifestMismatch {
		return ErrManifestMismatch
	}
	return nil
}

// PingResponse is the data of a ping reply.
type PingResponse struct {
	// UnixMilli is the server's clock at the time of the reply.
	UnixMilli int64  `cbor:"unix_milli"`
	Version   string `cbor:"version"`
}
