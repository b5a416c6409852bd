// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eyeballs-video/eyeballs/display"
	"github.com/eyeballs-video/eyeballs/lib/clock"
	"github.com/eyeballs-video/eyeballs/lib/config"
	"github.com/eyeballs-video/eyeballs/lib/netutil"
	"github.com/eyeballs-video/eyeballs/lib/queue"
	"github.com/eyeballs-video/eyeballs/lib/tile"
	"github.com/eyeballs-video/eyeballs/lib/tilecodec"
	"github.com/eyeballs-video/eyeballs/lib/wire"
	"github.com/eyeballs-video/eyeballs/lib/workerpool"
)

// Config configures a Pipeline. Zero values select the defaults noted
// on each field.
type Config struct {
	// Address is the UDP listen address, host:port.
	Address string

	Grid tile.Grid

	// ReadSize is the per-read buffer. It must hold MaxPayload plus
	// the header. Default: 32768.
	ReadSize int

	// SocketBuffer is the requested kernel receive buffer. Zero keeps
	// the kernel default.
	SocketBuffer int

	// MaxPayload rejects messages announcing a longer payload.
	// Default: wire.DefaultDatagramSize.
	MaxPayload int

	// MaxBuffered bounds bytes held for an incomplete message.
	// Default: twice MaxPayload plus ReadSize.
	MaxBuffered int

	// QueueCapacity bounds both queues. Default: 30.
	QueueCapacity int

	// DecodeWorkers is the number of decode goroutines requested.
	// Default: 1.
	DecodeWorkers int

	// MaxWorkers is the governor limit. Workers requested beyond it
	// are refused and not retried. Default: DecodeWorkers + 1.
	MaxWorkers int

	PollInterval time.Duration
	FPSInterval  int
	Completeness CompletenessPolicy
	Clock        clock.Clock
}

// Stats is a snapshot of the pipeline counters.
type Stats struct {
	Datagrams      uint64 `cbor:"datagrams"`
	BytesReceived  uint64 `cbor:"bytes_received"`
	Messages       uint64 `cbor:"messages"`
	Desyncs        uint64 `cbor:"desyncs"`
	DiscardedBytes uint64 `cbor:"discarded_bytes"`
	Decoded        uint64 `cbor:"decoded"`
	DecodeErrors   uint64 `cbor:"decode_errors"`
	OutOfRange     uint64 `cbor:"out_of_range"`
	Composited     uint64 `cbor:"composited"`
	Presented      uint64 `cbor:"presented"`
	PresentErrors  uint64 `cbor:"present_errors"`
	FPS            int    `cbor:"fps"`

	EncodedQueue  int    `cbor:"encoded_queue"`
	DecodedQueue  int    `cbor:"decoded_queue"`
	QueueCapacity int    `cbor:"queue_capacity"`
	QueueStalls   uint64 `cbor:"queue_stalls"`
	ActiveWorkers int    `cbor:"active_workers"`

	Session string `cbor:"session,omitempty"`
}

// Pipeline owns the queues, the worker governor, the compositor, and
// the video socket.
type Pipeline struct {
	config Config
	codec  tilecodec.Codec
	logger *slog.Logger

	encoded    *queue.Bounded[EncodedTile]
	decoded    *queue.Bounded[DecodedTile]
	governor   *workerpool.Governor
	compositor *Compositor
	counters   *counters

	ready   chan struct{}
	started atomic.Bool

	mu      sync.Mutex
	addr    net.Addr
	session string
}

// NewPipeline validates config and builds the stages. Nothing is bound
// until Run.
func NewPipeline(cfg Config, codec tilecodec.Codec, sink display.Sink, logger *slog.Logger) (*Pipeline, error) {
	if err := cfg.Grid.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReadSize <= 0 {
		cfg.ReadSize = 32 * 1024
	}
	if cfg.MaxPayload <= 0 {
		cfg.MaxPayload = wire.DefaultDatagramSize
	}
	if cfg.MaxBuffered <= 0 {
		cfg.MaxBuffered = 2*cfg.MaxPayload + cfg.ReadSize
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 30
	}
	if cfg.DecodeWorkers <= 0 {
		cfg.DecodeWorkers = 1
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = cfg.DecodeWorkers + 1
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	// The kernel truncates a datagram longer than the read buffer
	// without reporting it, and the lost tail cannot be reassembled.
	if cfg.ReadSize < cfg.MaxPayload+wire.HeaderSize {
		return nil, fmt.Errorf("read size %d is smaller than the largest message (%d-byte payload plus %d-byte header)",
			cfg.ReadSize, cfg.MaxPayload, wire.HeaderSize)
	}

	shared := &counters{}
	decoded := queue.New[DecodedTile](cfg.QueueCapacity)
	return &Pipeline{
		config:   cfg,
		codec:    codec,
		logger:   logger,
		encoded:  queue.New[EncodedTile](cfg.QueueCapacity),
		decoded:  decoded,
		governor: workerpool.New(cfg.MaxWorkers, logger),
		compositor: newCompositor(CompositorConfig{
			Grid:         cfg.Grid,
			PollInterval: cfg.PollInterval,
			FPSInterval:  cfg.FPSInterval,
			Policy:       cfg.Completeness,
			Clock:        cfg.Clock,
		}, decoded, sink, logger, shared),
		counters: shared,
		ready:    make(chan struct{}),
	}, nil
}

// Run binds the video socket, starts intake and decode workers, and
// composites on the calling goroutine until ctx is cancelled or intake
// fails. It returns after every worker has exited, with the joined
// worker errors. A Pipeline runs once; later calls return an error.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return errRunTwice
	}
	conn, err := netutil.ListenUDP(p.config.Address, p.config.SocketBuffer, p.logger)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.addr = conn.LocalAddr()
	p.mu.Unlock()
	close(p.ready)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	worker := &intake{
		conn:      conn,
		assembler: wire.NewAssembler(p.config.MaxPayload, p.config.MaxBuffered),
		out:       p.encoded,
		readSize:  p.config.ReadSize,
		counters:  p.counters,
		logger:    p.logger,
	}
	err = p.governor.TryStart(ctx, "intake", func(ctx context.Context) error {
		// Without intake nothing else can make progress.
		defer cancel()
		return worker.run(ctx)
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("starting intake: %w", err)
	}

	for i := range p.config.DecodeWorkers {
		worker := &decoder{
			codec:     p.codec,
			tileCount: p.config.Grid.Count(),
			in:        p.encoded,
			out:       p.decoded,
			counters:  p.counters,
			logger:    p.logger,
		}
		name := fmt.Sprintf("decode-%d", i)
		if err := p.governor.TryStart(ctx, name, worker.run); err != nil {
			p.logger.Warn("decode worker not started", "worker", name, "error", err)
		}
	}

	p.logger.Info("receiver pipeline running",
		"address", conn.LocalAddr().String(),
		"grid", p.config.Grid.String(),
		"codec", p.codec.Name(),
		"workers", p.governor.Active(),
		"completeness", string(p.config.Completeness),
	)

	compositeErr := p.compositor.Run(ctx)

	cancel()
	conn.Close()
	workerErr := p.governor.Wait()
	p.logger.Info("receiver pipeline stopped")
	return errors.Join(compositeErr, workerErr)
}

var errRunTwice = errors.New("receiver pipeline already run")

// Ready is closed once Run has bound the socket.
func (p *Pipeline) Ready() <-chan struct{} { return p.ready }

// Addr is the bound socket address, or nil before Ready.
func (p *Pipeline) Addr() net.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addr
}

// Compositor exposes the compositor for snapshots.
func (p *Pipeline) Compositor() *Compositor { return p.compositor }

// SetSession records the stream session accepted by the handshake.
func (p *Pipeline) SetSession(session string) {
	p.mu.Lock()
	p.session = session
	p.mu.Unlock()
	p.logger.Info("stream session accepted", "session", session)
}

// Stats returns the current counters and queue depths.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	session := p.session
	p.mu.Unlock()

	return Stats{
		Datagrams:      p.counters.datagrams.Load(),
		BytesReceived:  p.counters.bytesReceived.Load(),
		Messages:       p.counters.messages.Load(),
		Desyncs:        p.counters.desyncs.Load(),
		DiscardedBytes: p.counters.discardedBytes.Load(),
		Decoded:        p.counters.decoded.Load(),
		DecodeErrors:   p.counters.decodeErrors.Load(),
		OutOfRange:     p.counters.outOfRange.Load(),
		Composited:     p.counters.composited.Load(),
		Presented:      p.counters.presented.Load(),
		PresentErrors:  p.counters.presentErrors.Load(),
		FPS:            int(p.counters.fps.Load()),
		EncodedQueue:   p.encoded.Len(),
		DecodedQueue:   p.decoded.Len(),
		QueueCapacity:  p.config.QueueCapacity,
		QueueStalls:    p.encoded.Stalls() + p.decoded.Stalls(),
		ActiveWorkers:  p.governor.Active(),
		Session:        session,
	}
}

// Metrics converts Stats for the terminal dashboard.
func (s Stats) Metrics() display.Metrics {
	return display.Metrics{
		FPS:     s.FPS,
		Session: s.Session,
		Counters: []display.Counter{
			{Name: "datagrams", Value: s.Datagrams},
			{Name: "bytes received", Value: s.BytesReceived},
			{Name: "tiles decoded", Value: s.Decoded},
			{Name: "tiles composited", Value: s.Composited},
			{Name: "frames presented", Value: s.Presented},
			{Name: "decode errors", Value: s.DecodeErrors},
			{Name: "out of range", Value: s.OutOfRange},
			{Name: "desyncs", Value: s.Desyncs},
			{Name: "queue stalls", Value: s.QueueStalls},
		},
		Gauges: []display.Gauge{
			{Name: "encoded queue", Value: s.EncodedQueue, Capacity: s.QueueCapacity},
			{Name: "decoded queue", Value: s.DecodedQueue, Capacity: s.QueueCapacity},
		},
	}
}

// ConfigFrom maps the loaded configuration onto a pipeline config for
// the given video address.
func ConfigFrom(address string, stream config.StreamConfig, receiver config.ReceiverConfig) (Config, error) {
	policy, err := ParseCompletenessPolicy(receiver.Completeness)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Address:       address,
		Grid:          stream.Grid(),
		ReadSize:      receiver.ReadSize,
		SocketBuffer:  receiver.SocketBuffer,
		MaxPayload:    stream.MaxDatagram - wire.HeaderSize,
		MaxBuffered:   receiver.MaxBuffered,
		QueueCapacity: receiver.QueueCapacity,
		DecodeWorkers: receiver.DecodeWorkers,
		PollInterval:  receiver.PollInterval,
		FPSInterval:   receiver.FPSInterval,
		Completeness:  policy,
	}, nil
}
