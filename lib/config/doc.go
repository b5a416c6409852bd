// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the eyeball
// and cortex binaries.
//
// Configuration is loaded from a single file specified by either the
// EYEBALLS_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search. A binary run
// without either uses [Default], which describes one cortex on the
// loopback interface.
//
// The file has four sections:
//
//   - servers: named cortex endpoints an eyeball can stream to. The map
//     key becomes [Endpoint].Name.
//   - local: the endpoint this host's cortex binds.
//   - stream: tile grid, codec and datagram limits. Sender and receiver
//     must agree on these; the manifest handshake checks the grid.
//   - receiver: queue capacity, decode workers, FPS meter interval,
//     completeness policy and socket sizing.
//
// Optional development and production sections override stream and
// receiver values when [Config].Environment matches. ${HOME} and
// ${VAR:-default} patterns are expanded in path fields after loading.
package config
