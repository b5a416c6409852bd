// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds the socket plumbing shared by the sender, the
// receiver, and the control channel: UDP endpoint setup with an
// enlarged kernel receive buffer, and classification of the errors a
// socket returns when it is closed out from under a blocked read.
package netutil
