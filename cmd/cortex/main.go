// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/eyeballs-video/eyeballs/control"
	"github.com/eyeballs-video/eyeballs/display"
	"github.com/eyeballs-video/eyeballs/lib/clock"
	"github.com/eyeballs-video/eyeballs/lib/config"
	"github.com/eyeballs-video/eyeballs/lib/logging"
	"github.com/eyeballs-video/eyeballs/lib/netutil"
	"github.com/eyeballs-video/eyeballs/lib/process"
	"github.com/eyeballs-video/eyeballs/lib/tilecodec"
	"github.com/eyeballs-video/eyeballs/lib/version"
	"github.com/eyeballs-video/eyeballs/lib/workerpool"
	"github.com/eyeballs-video/eyeballs/receiver"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

type options struct {
	configPath       string
	server           string
	snapshotPath     string
	snapshotInterval time.Duration
	dashboard        bool
	logLevel         string
}

func run() error {
	var opts options
	flagSet := pflag.NewFlagSet("cortex", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to eyeballs.yaml (default: $"+config.EnvironmentVariable+", then built-in defaults)")
	flagSet.StringVar(&opts.server, "server", "", "serve as this entry under servers: (default: the local section)")
	flagSet.StringVar(&opts.snapshotPath, "snapshot", "", "write the composite to this PNG (overrides display.snapshot_path)")
	flagSet.DurationVar(&opts.snapshotInterval, "snapshot-interval", 0, "minimum time between snapshot writes (overrides display.snapshot_interval)")
	flagSet.BoolVar(&opts.dashboard, "dashboard", false, "show the terminal stats dashboard")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, or error")
	showVersion := flagSet.Bool("version", false, "print version information and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if *showVersion {
		version.Print("cortex")
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return err
	}
	if opts.snapshotPath != "" {
		cfg.Display.SnapshotPath = opts.snapshotPath
	}
	if opts.snapshotInterval > 0 {
		cfg.Display.SnapshotInterval = opts.snapshotInterval
	}
	if opts.dashboard {
		cfg.Display.Dashboard = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	endpoint, err := cfg.Server(opts.server)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	dashboard := cfg.Display.Dashboard && term.IsTerminal(int(os.Stdout.Fd()))
	if dashboard && level < slog.LevelError {
		// The dashboard owns the terminal; only errors reach stderr.
		level = slog.LevelError
	}
	logger := logging.New(os.Stderr, level).With("binary", "cortex")
	if cfg.Display.Dashboard && !dashboard {
		logger.Warn("dashboard disabled: stdout is not a terminal")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, endpoint, dashboard, logger)
}

func serve(ctx context.Context, cfg *config.Config, endpoint *config.Endpoint, dashboard bool, logger *slog.Logger) error {
	codec, err := tilecodec.New(cfg.Stream.Codec, cfg.Stream.Quality)
	if err != nil {
		return err
	}

	var sink display.Sink = display.Discard
	if cfg.Display.SnapshotPath != "" {
		sink = display.NewSnapshot(cfg.Display.SnapshotPath, cfg.Display.SnapshotInterval, clock.Real(), logger)
	}

	pipelineConfig, err := receiver.ConfigFrom(
		netutil.JoinHostPort(endpoint.External, endpoint.VideoPort), cfg.Stream, cfg.Receiver)
	if err != nil {
		return err
	}
	pipelineConfig.MaxBuffered = cfg.MaxBuffered()
	pipeline, err := receiver.NewPipeline(pipelineConfig, codec, sink, logger)
	if err != nil {
		return err
	}

	expected := control.NewManifest(cfg.Stream.Grid(), codec.Name(), cfg.Stream.MaxDatagram)
	server := control.NewServer(control.ServerOptions{
		IdleTimeout:    endpoint.Timeout,
		MaxRequest:     endpoint.BufferSize,
		MaxConnections: endpoint.SensorCount,
	}, logger)
	server.Handle(control.ActionManifest, control.ManifestHandler(expected, endpoint.VideoPort, func(offered control.Manifest) {
		pipeline.SetSession(offered.Session)
	}))
	server.Handle(control.ActionStats, control.StatsHandler(func() any { return pipeline.Stats() }))

	logger.Info("cortex starting",
		"version", version.Info(),
		"server", endpoint.Name,
		"grid", cfg.Stream.Grid().String(),
		"fingerprint", expected.Fingerprint,
		"codec", codec.Name(),
	)

	// Any service exiting stops the others.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	services := workerpool.New(3, logger)
	start := func(name string, fn workerpool.Func) error {
		return services.TryStart(ctx, name, func(ctx context.Context) error {
			defer cancel()
			return fn(ctx)
		})
	}

	if err := start("pipeline", pipeline.Run); err != nil {
		return err
	}
	if err := start("control", func(ctx context.Context) error {
		return server.Serve(ctx, netutil.JoinHostPort(endpoint.External, endpoint.CommandPort))
	}); err != nil {
		cancel()
		return errors.Join(err, services.Wait())
	}
	if dashboard {
		model := display.NewDashboard("cortex", time.Second, func() display.Metrics {
			return pipeline.Stats().Metrics()
		})
		if err := start("dashboard", func(ctx context.Context) error {
			return display.RunDashboard(ctx, model)
		}); err != nil {
			logger.Warn("dashboard not started", "error", err)
		}
	}

	err = services.Wait()
	stats := pipeline.Stats()
	logger.Info("cortex stopped",
		"datagrams", stats.Datagrams,
		"decoded", stats.Decoded,
		"presented", stats.Presented,
		"desyncs", stats.Desyncs,
		"decode_errors", stats.DecodeErrors,
	)
	return err
}
