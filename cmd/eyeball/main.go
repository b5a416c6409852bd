// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/eyeballs-video/eyeballs/capture"
	"github.com/eyeballs-video/eyeballs/control"
	"github.com/eyeballs-video/eyeballs/lib/config"
	"github.com/eyeballs-video/eyeballs/lib/logging"
	"github.com/eyeballs-video/eyeballs/lib/netutil"
	"github.com/eyeballs-video/eyeballs/lib/process"
	"github.com/eyeballs-video/eyeballs/lib/tilecodec"
	"github.com/eyeballs-video/eyeballs/lib/version"
	"github.com/eyeballs-video/eyeballs/sender"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

type options struct {
	configPath  string
	server      string
	source      string
	frames      int
	noHandshake bool
	logLevel    string
}

func run() error {
	var opts options
	flagSet := pflag.NewFlagSet("eyeball", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to eyeballs.yaml (default: $"+config.EnvironmentVariable+", then built-in defaults)")
	flagSet.StringVar(&opts.server, "server", "", "name of the cortex under servers: (default: the local section)")
	flagSet.StringVar(&opts.source, "source", "pattern", "frame source: pattern or dir:<path>")
	flagSet.IntVar(&opts.frames, "frames", 0, "stop after this many frames (0 streams until interrupted)")
	flagSet.BoolVar(&opts.noHandshake, "no-handshake", false, "skip the manifest handshake and stream immediately")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, or error")
	showVersion := flagSet.Bool("version", false, "print version information and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if *showVersion {
		version.Print("eyeball")
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	level, err := logging.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, level).With("binary", "eyeball")

	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	endpoint, err := cfg.Server(opts.server)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return stream(ctx, cfg, endpoint, opts, logger)
}

func stream(ctx context.Context, cfg *config.Config, endpoint *config.Endpoint, opts options, logger *slog.Logger) error {
	codec, err := tilecodec.New(cfg.Stream.Codec, cfg.Stream.Quality)
	if err != nil {
		return err
	}
	source, err := capture.Open(opts.source, cfg.Stream.Width, cfg.Stream.Height)
	if err != nil {
		return err
	}
	source = capture.Scaled(source, cfg.Stream.Width, cfg.Stream.Height)

	s, err := sender.New(sender.Config{
		Address:     netutil.JoinHostPort(endpoint.Host(), endpoint.VideoPort),
		Grid:        cfg.Stream.Grid(),
		MaxDatagram: cfg.Stream.MaxDatagram,
		FrameRate:   cfg.Stream.FrameRate,
		Frames:      opts.frames,
	}, codec, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	if !opts.noHandshake {
		if err := handshake(ctx, endpoint, s.Manifest(), logger); err != nil {
			return err
		}
	}

	logger.Info("eyeball streaming",
		"version", version.Info(),
		"server", endpoint.Name,
		"source", opts.source,
		"session", s.Manifest().Session,
	)
	err = s.Run(ctx, source)

	stats := s.Stats()
	logger.Info("eyeball stopped",
		"frames", stats.Frames,
		"tiles", stats.Tiles,
		"tile_errors", stats.TileErrors,
		"oversize", stats.Oversize,
		"bytes", stats.Bytes,
		"skipped_captures", stats.SkippedCaptures,
	)
	return err
}

// handshake offers manifest to the cortex and checks it will read
// tiles where the sender is about to send them.
func handshake(ctx context.Context, endpoint *config.Endpoint, manifest control.Manifest, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	address := netutil.JoinHostPort(endpoint.Host(), endpoint.CommandPort)
	client, err := control.Dial(ctx, address)
	if err != nil {
		return err
	}
	defer client.Close()

	accepted, err := client.Handshake(ctx, manifest)
	if err != nil {
		return fmt.Errorf("handshake with %s: %w", address, err)
	}
	if accepted.VideoPort != endpoint.VideoPort {
		return fmt.Errorf("cortex at %s reads video on port %d, configured video_port is %d",
			address, accepted.VideoPort, endpoint.VideoPort)
	}

	logger.Info("handshake accepted",
		"control", address,
		"session", accepted.Session,
		"grid", manifest.Grid.String(),
		"fingerprint", manifest.Fingerprint,
	)
	return nil
}
