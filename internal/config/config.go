// Package config loads the YAML configuration of the resource binaries.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/resourcekit/internal/client"
	"github.com/zeusync/resourcekit/internal/core/observability/log"
	"github.com/zeusync/resourcekit/internal/core/scheduler"
	"github.com/zeusync/resourcekit/internal/server"
)

var ErrInvalid = errors.New("invalid configuration")

// Transport kinds.
const (
	TransportWebSocket = "websocket"
	TransportQUIC      = "quic"
)

type Config struct {
	Resource  string          `yaml:"resource"`
	Log       LogConfig       `yaml:"log"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Transport TransportConfig `yaml:"transport"`
	UI        UIConfig        `yaml:"ui"`
	Server    ServerConfig    `yaml:"server"`
	Client    ClientConfig    `yaml:"client"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

type SchedulerConfig struct {
	FrameRate time.Duration `yaml:"frame_rate"`
}

type TransportConfig struct {
	Kind string `yaml:"kind"`
	// Addr is the listen address of the server and the dial address of the
	// client.
	Addr string `yaml:"addr"`
	// Path is the websocket endpoint path.
	Path string `yaml:"path"`
}

type UIConfig struct {
	// Indent applies to the text the client hands to its UI layer.
	Indent string `yaml:"indent"`
}

type GCConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

type ServerConfig struct {
	GarbageCollector GCConfig `yaml:"garbage_collector"`
}

type DeathWatcherConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

type ClientConfig struct {
	// Name is the player name sent when joining.
	Name             string             `yaml:"name"`
	Identifiers      []string           `yaml:"identifiers"`
	DeathWatcher     DeathWatcherConfig `yaml:"death_watcher"`
	GarbageCollector GCConfig           `yaml:"garbage_collector"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	srv := server.DefaultConfig()
	cl := client.DefaultConfig()
	return Config{
		Resource:  "resourcekit",
		Log:       LogConfig{Level: "info", Encoding: "console"},
		Scheduler: SchedulerConfig{FrameRate: scheduler.DefaultFrameRate},
		Transport: TransportConfig{Kind: TransportWebSocket, Addr: "127.0.0.1:30120", Path: "/ws"},
		Server: ServerConfig{
			GarbageCollector: GCConfig{Enabled: srv.GarbageCollector, Interval: srv.GCInterval},
		},
		Client: ClientConfig{
			Name:             "player",
			DeathWatcher:     DeathWatcherConfig{Enabled: cl.DeathWatcher, Interval: cl.DeathWatchInterval},
			GarbageCollector: GCConfig{Enabled: cl.GarbageCollector, Interval: cl.GCInterval},
		},
	}
}

// Load reads the file at path on top of Default. An empty path yields Default.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes YAML from r on top of Default. Unknown keys are rejected.
func Parse(r io.Reader) (Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.Resource == "" {
		return fmt.Errorf("%w: resource is empty", ErrInvalid)
	}
	switch c.Transport.Kind {
	case TransportWebSocket, TransportQUIC:
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalid, c.Transport.Kind)
	}
	if c.Scheduler.FrameRate <= 0 {
		return fmt.Errorf("%w: frame_rate must be positive", ErrInvalid)
	}
	if c.Server.GarbageCollector.Interval <= 0 || c.Client.GarbageCollector.Interval <= 0 {
		return fmt.Errorf("%w: garbage_collector.interval must be positive", ErrInvalid)
	}
	if c.Client.DeathWatcher.Interval <= 0 {
		return fmt.Errorf("%w: death_watcher.interval must be positive", ErrInvalid)
	}
	return nil
}

// LogLevel parses Log.Level.
func (c Config) LogLevel() log.Level {
	return log.ParseLevel(c.Log.Level)
}

// LoggerConfig maps Log onto the logger configuration.
func (c Config) LoggerConfig(out io.Writer) log.Config {
	return log.Config{Level: c.LogLevel(), Encoding: c.Log.Encoding, Output: out}
}

// ServerHost maps the configuration onto the server host object.
func (c Config) ServerHost() server.Config {
	return server.Config{
		Resource:         c.Resource,
		GarbageCollector: c.Server.GarbageCollector.Enabled,
		GCInterval:       c.Server.GarbageCollector.Interval,
	}
}

// ClientHost maps the configuration onto the client host object.
func (c Config) ClientHost() client.Config {
	return client.Config{
		Resource:           c.Resource,
		UIIndent:           c.UI.Indent,
		DeathWatcher:       c.Client.DeathWatcher.Enabled,
		DeathWatchInterval: c.Client.DeathWatcher.Interval,
		GarbageCollector:   c.Client.GarbageCollector.Enabled,
		GCInterval:         c.Client.GarbageCollector.Interval,
	}
}
