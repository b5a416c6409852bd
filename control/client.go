// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/eyeballs-video/eyeballs/lib/codec"
)

// dialTimeout covers only the TCP connect.
const dialTimeout = 5 * time.Second

// responseTimeout is how long Call waits for a reply when ctx carries
// no deadline.
const responseTimeout = 30 * time.Second

// Client holds one persistent connection to a cortex. Calls are
// serialized; Client is safe for concurrent use.
type Client struct {
	address string

	mu      sync.Mutex
	conn    net.Conn
	encoder *codec.Encoder
	decoder *codec.Decoder
}

// Dial connects to the command channel at address.
func Dial(ctx context.Context, address string) (*Client, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", address, err)
	}
	return &Client{
		address: address,
		conn:    conn,
		encoder: codec.NewEncoder(conn),
		decoder: codec.NewDecoder(conn),
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call sends one request and decodes the reply's data into result
// (which may be nil). fields holds action-specific request fields; the
// client adds "action". A reply with ok=false is returned as
// *CallError. Transport failures leave the connection unusable.
func (c *Client) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	request := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		request[key] = value
	}
	request["action"] = action

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(responseTimeout)
	}
	c.conn.SetDeadline(deadline)
	defer c.conn.SetDeadline(time.Time{})

	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := c.encoder.Encode(request); err != nil {
		return fmt.Errorf("calling %q on %s: writing request: %w", action, c.address, err)
	}
	var response Response
	if err := c.decoder.Decode(&response); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("calling %q on %s: %w", action, c.address, ctx.Err())
		}
		return fmt.Errorf("calling %q on %s: reading response: %w", action, c.address, err)
	}

	if !response.OK {
		return &CallError{
			Action:  action,
			Code:    response.Code,
			Message: response.Error,
		}
	}
	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}
	return nil
}

// Ping checks liveness.
func (c *Client) Ping(ctx context.Context) (PingResponse, error) {
	var response PingResponse
	err := c.Call(ctx, ActionPing, nil, &response)
	return response, err
}

// Handshake offers manifest to the cortex. A rejected manifest
// returns an error matching ErrManifestMismatch.
func (c *Client) Handshake(ctx context.Context, manifest Manifest) (HandshakeResponse, error) {
	var response HandshakeResponse
	err := c.Call(ctx, ActionManifest, map[string]any{"manifest": manifest}, &response)
	return response, err
}

// Stats decodes the cortex's counters into result.
func (c *Client) Stats(ctx context.Context, result any) error {
	return c.Call(ctx, ActionStats, nil, result)
}
