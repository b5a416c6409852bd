// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eyeballs-video/eyeballs/lib/tile"
	"github.com/eyeballs-video/eyeballs/lib/tilecodec"
)

// EnvironmentVariable names the variable [Load] reads the config path
// from.
const EnvironmentVariable = "EYEBALLS_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local testing on one machine.
	Development Environment = "development"
	// Production is for deployed sensor/viewer pairs.
	Production Environment = "production"
)

// Completeness policy names accepted by receiver.completeness.
const (
	PresentAlways   = "present-always"
	RequireComplete = "require-complete"
)

// Config is the top-level configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	// Servers are the cortex endpoints an eyeball can stream to, keyed
	// by name.
	Servers map[string]*Endpoint `yaml:"servers"`

	// Local is the endpoint this host's cortex binds.
	Local Endpoint `yaml:"local"`

	Stream   StreamConfig   `yaml:"stream"`
	Receiver ReceiverConfig `yaml:"receiver"`
	Display  DisplayConfig  `yaml:"display"`

	// Per-environment overrides, applied after the base config loads.
	Development *Overrides `yaml:"development,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains the sections that can be overridden per
// environment. Zero-valued fields leave the base value in place.
type Overrides struct {
	Stream   *StreamConfig   `yaml:"stream,omitempty"`
	Receiver *ReceiverConfig `yaml:"receiver,omitempty"`
}

// Endpoint is one cortex: where its command channel and video socket
// listen, and how it admits eyeball connections.
type Endpoint struct {
	// Name is the key under servers. Empty for the local section.
	Name string `yaml:"-"`

	// Localhost is substituted for External when External is 0.0.0.0.
	// Default: 127.0.0.1
	Localhost string `yaml:"localhost"`

	// External is the interface address the cortex is reached on.
	// Default: 127.0.0.1
	External string `yaml:"external"`

	// CommandPort is the TCP port of the control channel.
	// Default: 9898
	CommandPort int `yaml:"command_port"`

	// VideoPort is the UDP port tiles are sent to.
	// Default: 9999
	VideoPort int `yaml:"video_port"`

	// BufferSize caps one control request in bytes.
	// Default: 4096
	BufferSize int `yaml:"buffer_size"`

	// Timeout closes an idle control connection.
	// Default: 300s
	Timeout time.Duration `yaml:"timeout"`

	// SensorCount is the maximum number of concurrent control
	// connections.
	// Default: 5
	SensorCount int `yaml:"sensor_count"`
}

// StreamConfig describes the tiled stream. Both ends must use the same
// grid.
type StreamConfig struct {
	Columns int `yaml:"columns"`
	Rows    int `yaml:"rows"`
	Width   int `yaml:"width"`
	Height  int `yaml:"height"`

	// Codec is one of the names registered in lib/tilecodec.
	// Default: jpeg
	Codec string `yaml:"codec"`

	// Quality applies to lossy codecs only.
	// Default: 90
	Quality int `yaml:"quality"`

	// MaxDatagram is the largest framed message the sender transmits
	// and the largest payload the receiver accepts.
	// Default: 20480
	MaxDatagram int `yaml:"max_datagram"`

	// FrameRate caps frames per second at the sender. Zero is uncapped.
	FrameRate float64 `yaml:"frame_rate"`
}

// Grid returns the tile grid described by the stream section.
func (s StreamConfig) Grid() tile.Grid {
	return tile.Grid{Columns: s.Columns, Rows: s.Rows, Width: s.Width, Height: s.Height}
}

// ReceiverConfig tunes the cortex pipeline.
type ReceiverConfig struct {
	// ReadSize is the per-read buffer for the video socket.
	// Default: 32768
	ReadSize int `yaml:"read_size"`

	// SocketBuffer is the requested kernel receive buffer. Zero keeps
	// the kernel default.
	// Default: 4 MiB
	SocketBuffer int `yaml:"socket_buffer"`

	// QueueCapacity bounds both pipeline queues.
	// Default: 30
	QueueCapacity int `yaml:"queue_capacity"`

	// DecodeWorkers is the number of decode goroutines.
	// Default: 1
	DecodeWorkers int `yaml:"decode_workers"`

	// FPSInterval is how many tiles pass between FPS measurements.
	// Default: 10
	FPSInterval int `yaml:"fps_interval"`

	// PollInterval bounds each compositor wait so it notices shutdown.
	// Default: 100ms
	PollInterval time.Duration `yaml:"poll_interval"`

	// Completeness is present-always or require-complete.
	// Default: present-always
	Completeness string `yaml:"completeness"`

	// MaxBuffered bounds the bytes the assembler holds while waiting
	// for the rest of a message. Zero derives it from the stream's
	// MaxDatagram.
	MaxBuffered int `yaml:"max_buffered"`
}

// DisplayConfig configures where composite frames go.
type DisplayConfig struct {
	// SnapshotPath, when set, receives the composite as a PNG.
	SnapshotPath string `yaml:"snapshot_path"`

	// SnapshotInterval throttles snapshot writes.
	// Default: 1s
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`

	// Dashboard enables the terminal stats dashboard.
	Dashboard bool `yaml:"dashboard"`
}

// Default returns the default configuration: one 1×3 grid at 480×360,
// command port 9898, video port 9999, 30-slot queues.
func Default() *Config {
	return &Config{
		Environment: Development,
		Local:       defaultEndpoint(),
		Stream: StreamConfig{
			Columns:     1,
			Rows:        3,
			Width:       480,
			Height:      360,
			Codec:       "jpeg",
			Quality:     90,
			MaxDatagram: 20 * 1024,
		},
		Receiver: ReceiverConfig{
			ReadSize:      32 * 1024,
			SocketBuffer:  4 << 20,
			QueueCapacity: 30,
			DecodeWorkers: 1,
			FPSInterval:   10,
			PollInterval:  100 * time.Millisecond,
			Completeness:  PresentAlways,
		},
		Display: DisplayConfig{
			SnapshotInterval: time.Second,
		},
	}
}

func defaultEndpoint() Endpoint {
	return Endpoint{
		Localhost:   "127.0.0.1",
		External:    "127.0.0.1",
		CommandPort: 9898,
		VideoPort:   9999,
		BufferSize:  4 * 1024,
		Timeout:     300 * time.Second,
		SensorCount: 5,
	}
}

// Load loads configuration from the EYEBALLS_CONFIG environment
// variable. It fails if the variable is not set.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your eyeballs.yaml config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path on top of
// [Default].
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.fillEndpoints()
	cfg.expandVariables()

	return cfg, nil
}

// LoadOrDefault loads path when it is non-empty, then falls back to
// EYEBALLS_CONFIG, then to [Default].
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	if os.Getenv(EnvironmentVariable) != "" {
		return Load()
	}
	return Default(), nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if stream := overrides.Stream; stream != nil {
		overrideInt(&c.Stream.Columns, stream.Columns)
		overrideInt(&c.Stream.Rows, stream.Rows)
		overrideInt(&c.Stream.Width, stream.Width)
		overrideInt(&c.Stream.Height, stream.Height)
		overrideString(&c.Stream.Codec, stream.Codec)
		overrideInt(&c.Stream.Quality, stream.Quality)
		overrideInt(&c.Stream.MaxDatagram, stream.MaxDatagram)
		if stream.FrameRate != 0 {
			c.Stream.FrameRate = stream.FrameRate
		}
	}

	if receiver := overrides.Receiver; receiver != nil {
		overrideInt(&c.Receiver.ReadSize, receiver.ReadSize)
		overrideInt(&c.Receiver.SocketBuffer, receiver.SocketBuffer)
		overrideInt(&c.Receiver.QueueCapacity, receiver.QueueCapacity)
		overrideInt(&c.Receiver.DecodeWorkers, receiver.DecodeWorkers)
		overrideInt(&c.Receiver.FPSInterval, receiver.FPSInterval)
		if receiver.PollInterval != 0 {
			c.Receiver.PollInterval = receiver.PollInterval
		}
		overrideString(&c.Receiver.Completeness, receiver.Completeness)
		overrideInt(&c.Receiver.MaxBuffered, receiver.MaxBuffered)
	}
}

func overrideInt(target *int, value int) {
	if value != 0 {
		*target = value
	}
}

func overrideString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

// fillEndpoints injects each server's name from its map key and fills
// unset fields from the defaults.
func (c *Config) fillEndpoints() {
	for name, endpoint := range c.Servers {
		if endpoint == nil {
			endpoint = &Endpoint{}
			c.Servers[name] = endpoint
		}
		endpoint.Name = name
		endpoint.fillDefaults()
	}
	c.Local.fillDefaults()
}

func (e *Endpoint) fillDefaults() {
	defaults := defaultEndpoint()
	overrideString(&defaults.Localhost, e.Localhost)
	overrideString(&defaults.External, e.External)
	overrideInt(&defaults.CommandPort, e.CommandPort)
	overrideInt(&defaults.VideoPort, e.VideoPort)
	overrideInt(&defaults.BufferSize, e.BufferSize)
	overrideInt(&defaults.SensorCount, e.SensorCount)
	if e.Timeout != 0 {
		defaults.Timeout = e.Timeout
	}
	defaults.Name = e.Name
	*e = defaults
}

// Host returns the address to dial. An External of 0.0.0.0 resolves
// to Localhost; a cortex binds External itself.
func (e *Endpoint) Host() string {
	if e.External == "0.0.0.0" {
		return e.Localhost
	}
	return e.External
}

// Server returns the named endpoint, or the local section when name is
// empty.
func (c *Config) Server(name string) (*Endpoint, error) {
	if name == "" {
		local := c.Local
		return &local, nil
	}
	endpoint, ok := c.Servers[name]
	if !ok {
		return nil, fmt.Errorf("server %q not defined (known: %v)", name, c.ServerNames())
	}
	return endpoint, nil
}

// ServerNames lists the configured server names in sorted order.
func (c *Config) ServerNames() []string {
	names := make([]string, 0, len(c.Servers))
	for name := range c.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MaxBuffered returns the assembler bound, derived from the datagram
// limit when not set explicitly.
func (c *Config) MaxBuffered() int {
	if c.Receiver.MaxBuffered > 0 {
		return c.Receiver.MaxBuffered
	}
	return 2 * (c.Stream.MaxDatagram + c.Receiver.ReadSize)
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Display.SnapshotPath = expandVars(c.Display.SnapshotPath, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors and reports all of
// them at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if err := c.Stream.Grid().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("stream: %w", err))
	}
	if codecs := tilecodec.Names(); !slices.Contains(codecs, c.Stream.Codec) {
		errs = append(errs, fmt.Errorf("stream.codec must be one of: %v", codecs))
	}
	if c.Stream.Quality < 1 || c.Stream.Quality > 100 {
		errs = append(errs, fmt.Errorf("stream.quality must be in [1, 100], got %d", c.Stream.Quality))
	}
	if c.Stream.MaxDatagram <= 16 || c.Stream.MaxDatagram > 65507 {
		errs = append(errs, fmt.Errorf("stream.max_datagram must be in (16, 65507], got %d", c.Stream.MaxDatagram))
	}
	if c.Stream.FrameRate < 0 {
		errs = append(errs, fmt.Errorf("stream.frame_rate must not be negative, got %v", c.Stream.FrameRate))
	}

	if c.Receiver.ReadSize < c.Stream.MaxDatagram {
		errs = append(errs, fmt.Errorf("receiver.read_size (%d) must be at least stream.max_datagram (%d)",
			c.Receiver.ReadSize, c.Stream.MaxDatagram))
	}
	if c.Receiver.QueueCapacity <= 0 {
		errs = append(errs, errors.New("receiver.queue_capacity must be positive"))
	}
	if c.Receiver.DecodeWorkers <= 0 {
		errs = append(errs, errors.New("receiver.decode_workers must be positive"))
	}
	if c.Receiver.FPSInterval <= 0 {
		errs = append(errs, errors.New("receiver.fps_interval must be positive"))
	}
	if c.Receiver.PollInterval <= 0 {
		errs = append(errs, errors.New("receiver.poll_interval must be positive"))
	}
	policies := []string{PresentAlways, RequireComplete}
	if !slices.Contains(policies, c.Receiver.Completeness) {
		errs = append(errs, fmt.Errorf("receiver.completeness must be one of: %v", policies))
	}

	endpoints := []*Endpoint{&c.Local}
	for _, name := range c.ServerNames() {
		endpoints = append(endpoints, c.Servers[name])
	}
	for _, endpoint := range endpoints {
		label := "local"
		if endpoint.Name != "" {
			label = "servers." + endpoint.Name
		}
		if err := endpoint.validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
		}
	}

	return errors.Join(errs...)
}

func (e *Endpoint) validate() error {
	var errs []error
	if e.Host() == "" {
		errs = append(errs, errors.New("external address is required"))
	}
	for _, port := range []struct {
		name  string
		value int
	}{
		{"command_port", e.CommandPort},
		{"video_port", e.VideoPort},
	} {
		if port.value <= 0 || port.value > 65535 {
			errs = append(errs, fmt.Errorf("%s must be in [1, 65535], got %d", port.name, port.value))
		}
	}
	if e.SensorCount <= 0 {
		errs = append(errs, errors.New("sensor_count must be positive"))
	}
	if e.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if e.BufferSize <= 0 {
		errs = append(errs, errors.New("buffer_size must be positive"))
	}
	return errors.Join(errs...)
}
