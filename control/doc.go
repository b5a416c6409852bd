// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

// Package control implements the command channel between an eyeball
// and its cortex.
//
// The channel is a persistent TCP connection carrying a sequence of
// CBOR requests, each a map with an "action" field, and one CBOR
// response per request:
//
//	{ok: bool, error: string, code: string, data: <cbor>}
//
// CBOR values are self-delimiting, so requests need no extra framing.
// A connection stays open until the client hangs up or sits idle for
// the endpoint timeout.
//
// The server admits at most sensor_count concurrent connections; one
// more is closed immediately without a response. Built-in actions:
//
//   - ping: liveness, server time and version
//   - manifest: the stream handshake. The eyeball sends a [Manifest]
//     describing its tile grid and codec; the cortex rejects one whose
//     grid fingerprint or codec differs from its own with
//     [ErrManifestMismatch], so both ends enumerate tile indices the
//     same way before any video is sent.
//   - stats: receiver counters, registered by the cortex
//
// [Client] is the eyeball side.
package control
