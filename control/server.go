// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/eyeballs-video/eyeballs/lib/clock"
	"github.com/eyeballs-video/eyeballs/lib/codec"
	"github.com/eyeballs-video/eyeballs/lib/netutil"
	"github.com/eyeballs-video/eyeballs/lib/version"
	"github.com/eyeballs-video/eyeballs/lib/workerpool"
)

// writeTimeout bounds writing one response.
const writeTimeout = 10 * time.Second

// ServerOptions configures a Server. Zero values select the defaults
// noted on each field.
type ServerOptions struct {
	// IdleTimeout closes a connection that sends no request for this
	// long. Default: 300s.
	IdleTimeout time.Duration

	// MaxRequest caps one encoded request in bytes. Default: 4096.
	MaxRequest int

	// MaxConnections is the number of concurrent connections admitted.
	// Default: 5.
	MaxConnections int

	// Clock supplies the time reported by ping. Socket deadlines are
	// kernel wall-clock deadlines and always use time.Now.
	// Default: clock.Real().
	Clock clock.Clock
}

// Server serves the command channel.
type Server struct {
	options  ServerOptions
	handlers map[string]ActionFunc
	logger   *slog.Logger

	// connections admits and joins connection handlers.
	connections *workerpool.Governor

	mu       sync.Mutex
	listener net.Listener
	open     map[net.Conn]struct{}
}

// NewServer creates a server with the ping action registered. Register
// further actions with Handle before calling Serve.
func NewServer(options ServerOptions, logger *slog.Logger) *Server {
	if options.IdleTimeout <= 0 {
		options.IdleTimeout = 300 * time.Second
	}
	if options.MaxRequest <= 0 {
		options.MaxRequest = 4 * 1024
	}
	if options.MaxConnections <= 0 {
		options.MaxConnections = 5
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}

	server := &Server{
		options:     options,
		handlers:    make(map[string]ActionFunc),
		logger:      logger,
		connections: workerpool.New(options.MaxConnections, logger),
		open:        make(map[net.Conn]struct{}),
	}
	server.Handle(ActionPing, server.handlePing)
	return server
}

// Handle registers a handler for action. Panics if the action is
// already registered.
func (s *Server) Handle(action string, handler ActionFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("control.Server: duplicate handler for action %q", action))
	}
	s.handlers[action] = handler
}

// Listen binds the TCP listener. Serve calls it if it has not been
// called; calling it first lets a caller learn the bound address when
// listening on port 0.
func (s *Server) Listen(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", address, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	return nil
}

// Addr is the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled, then closes the
// listener and every open connection and waits for their handlers to
// return.
func (s *Server) Serve(ctx context.Context, address string) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		if err := s.Listen(address); err != nil {
			return err
		}
		s.mu.Lock()
		listener = s.listener
		s.mu.Unlock()
	}
	defer listener.Close()

	stop := context.AfterFunc(ctx, func() {
		listener.Close()
		s.closeOpen()
	})
	defer stop()

	s.logger.Info("control server listening",
		"address", listener.Addr().String(),
		"max_connections", s.options.MaxConnections,
	)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.track(conn)
		err = s.connections.TryStart(ctx, "control:"+conn.RemoteAddr().String(), func(ctx context.Context) error {
			defer s.untrack(conn)
			s.handleConnection(ctx, conn)
			return nil
		})
		if errors.Is(err, workerpool.ErrLimitReached) {
			s.logger.Warn("rejecting control connection",
				"remote", conn.RemoteAddr().String(),
				"active", s.connections.Active(),
			)
			s.untrack(conn)
		}
	}

	s.closeOpen()
	return s.connections.Wait()
}

// Active is the number of admitted connections.
func (s *Server) Active() int {
	return s.connections.Active()
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.open[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.open, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) closeOpen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.open {
		conn.Close()
	}
}

// requestLimiter caps the bytes read for one request. The budget is
// reset before each decode; bytes the decoder reads ahead count
// against the request being decoded.
type requestLimiter struct {
	reader    io.Reader
	remaining int
}

func (l *requestLimiter) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, errRequestTooLarge
	}
	if len(p) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.reader.Read(p)
	l.remaining -= n
	return n, err
}

var errRequestTooLarge = errors.New("request exceeds size limit")

// handleConnection answers requests until the client hangs up, goes
// idle, or sends something undecodable.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	s.logger.Info("control connection opened", "remote", remote)
	defer s.logger.Info("control connection closed", "remote", remote)

	limiter := &requestLimiter{reader: conn}
	decoder := codec.NewDecoder(limiter)
	encoder := codec.NewEncoder(conn)

	for ctx.Err() == nil {
		conn.SetReadDeadline(time.Now().Add(s.options.IdleTimeout))
		limiter.remaining = s.options.MaxRequest

		var raw codec.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			switch {
			case netutil.IsExpectedCloseError(err):
			case netutil.IsTimeout(err):
				s.logger.Info("control connection idle", "remote", remote, "timeout", s.options.IdleTimeout)
			default:
				s.writeResponse(conn, encoder, Response{Error: fmt.Sprintf("invalid request: %v", err)})
			}
			return
		}

		response := s.dispatch(ctx, raw)
		if !s.writeResponse(conn, encoder, response) {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, raw codec.RawMessage) Response {
	var header struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &header); err != nil {
		return Response{Error: fmt.Sprintf("invalid request: %v", err)}
	}
	if header.Action == "" {
		return Response{Error: "missing required field: action"}
	}

	handler, exists := s.handlers[header.Action]
	if !exists {
		return Response{Error: fmt.Sprintf("unknown action %q", header.Action)}
	}

	result, err := handler(ctx, []byte(raw))
	if err != nil {
		s.logger.Debug("action failed", "action", header.Action, "error", err)
		response := Response{Error: err.Error()}
		if errors.Is(err, ErrManifestMismatch) {
			response.Code = codeManifestMismatch
		}
		return response
	}

	response := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			return Response{Error: fmt.Sprintf("internal: marshaling response: %v", err)}
		}
		response.Data = data
	}
	return response
}

// writeResponse reports whether the connection is still usable.
func (s *Server) writeResponse(conn net.Conn, encoder *codec.Encoder, response Response) bool {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := encoder.Encode(response); err != nil {
		s.logger.Debug("failed to write response", "error", err)
		return false
	}
	return true
}

func (s *Server) handlePing(context.Context, []byte) (any, error) {
	return PingResponse{
		UnixMilli: s.options.Clock.Now().UnixMilli(),
		Version:   version.Info(),
	}, nil
}
