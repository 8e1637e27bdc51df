package injector

import (
	"fmt"
	"net/url"
	"os"

	"github.com/google/wire"

	"github.com/zeusync/resourcekit/internal/client"
	"github.com/zeusync/resourcekit/internal/config"
	"github.com/zeusync/resourcekit/internal/core/engine"
	"github.com/zeusync/resourcekit/internal/core/engine/sim"
	"github.com/zeusync/resourcekit/internal/core/events/bus"
	"github.com/zeusync/resourcekit/internal/core/observability/log"
	"github.com/zeusync/resourcekit/internal/core/protocol"
	"github.com/zeusync/resourcekit/internal/core/protocol/quic"
	"github.com/zeusync/resourcekit/internal/core/protocol/websocket"
	"github.com/zeusync/resourcekit/internal/core/scheduler"
	"github.com/zeusync/resourcekit/internal/demo"
	"github.com/zeusync/resourcekit/internal/server"
)

// ConfigPath is the YAML file to load. Empty means defaults.
type ConfigPath string

// ServerApp is everything the server binary runs.
type ServerApp struct {
	Config  config.Config
	Logger  log.Log
	Runtime *sim.Server
	Host    *server.Server
}

// ClientApp is everything the client binary runs. The runtime must be
// connected before the scheduler starts.
type ClientApp struct {
	Config  config.Config
	Logger  log.Log
	Runtime *sim.Client
	Host    *client.Client
}

var CoreSet = wire.NewSet(
	ProvideConfig,
	ProvideLogger,
	ProvideScheduler,
	ProvideEventBus,
	ProvideExports,
)

var ServerSet = wire.NewSet(
	CoreSet,
	ProvideServerTransport,
	ProvideServerRuntime,
	ProvideServerHost,
	wire.Struct(new(ServerApp), "*"),
)

var ClientSet = wire.NewSet(
	CoreSet,
	ProvideClientTransport,
	ProvideClientRuntime,
	ProvideClientHost,
	wire.Struct(new(ClientApp), "*"),
)

func ProvideConfig(path ConfigPath) (config.Config, error) {
	return config.Load(string(path))
}

func ProvideLogger(cfg config.Config) log.Log {
	return log.NewWithConfig(cfg.LoggerConfig(os.Stderr))
}

func ProvideScheduler(cfg config.Config, logger log.Log) *scheduler.Scheduler {
	return scheduler.New(
		scheduler.WithLogger(logger.Named("scheduler")),
		scheduler.WithFrameRate(cfg.Scheduler.FrameRate),
	)
}

func ProvideEventBus() bus.EventBus {
	return bus.New()
}

func ProvideExports() *engine.Exports {
	return engine.NewExports()
}

func ProvideServerTransport(cfg config.Config, logger log.Log) (protocol.ServerTransport, error) {
	switch cfg.Transport.Kind {
	case config.TransportWebSocket:
		return websocket.NewServer(websocket.Config{Addr: cfg.Transport.Addr, Path: cfg.Transport.Path}, logger), nil
	case config.TransportQUIC:
		return quic.NewServer(quic.Config{Addr: cfg.Transport.Addr}, logger), nil
	}
	return nil, fmt.Errorf("%w: unknown transport %q", config.ErrInvalid, cfg.Transport.Kind)
}

func ProvideClientTransport(cfg config.Config, logger log.Log) (protocol.ClientTransport, error) {
	switch cfg.Transport.Kind {
	case config.TransportWebSocket:
		u := url.URL{Scheme: "ws", Host: cfg.Transport.Addr, Path: cfg.Transport.Path}
		return websocket.NewClient(u.String(), logger), nil
	case config.TransportQUIC:
		return quic.NewClient(cfg.Transport.Addr, quic.InsecureClientTLS(), logger), nil
	}
	return nil, fmt.Errorf("%w: unknown transport %q", config.ErrInvalid, cfg.Transport.Kind)
}

func ProvideServerRuntime(
	cfg config.Config,
	sched *scheduler.Scheduler,
	events bus.EventBus,
	exports *engine.Exports,
	transport protocol.ServerTransport,
	logger log.Log,
) *sim.Server {
	return sim.NewServer(sim.ServerOptions{
		Resource:  cfg.Resource,
		Scheduler: sched,
		Events:    events,
		Exports:   exports,
		Transport: transport,
		Logger:    logger,
	})
}

func ProvideClientRuntime(
	cfg config.Config,
	sched *scheduler.Scheduler,
	events bus.EventBus,
	exports *engine.Exports,
	transport protocol.ClientTransport,
	logger log.Log,
) *sim.Client {
	return sim.NewClient(sim.ClientOptions{
		Resource:  cfg.Resource,
		Scheduler: sched,
		Events:    events,
		Exports:   exports,
		Transport: transport,
		Logger:    logger,
	})
}

// ProvideServerHost builds the server host object with the demo modules.
func ProvideServerHost(rt *sim.Server, cfg config.Config, logger log.Log) (*server.Server, error) {
	s, err := server.New(rt, cfg.ServerHost(), logger)
	if err != nil {
		return nil, err
	}
	if err = demo.RegisterServer(s); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// ProvideClientHost builds the client host object with the demo modules.
func ProvideClientHost(rt *sim.Client, cfg config.Config, logger log.Log) (*client.Client, error) {
	c, err := client.New(rt, cfg.ClientHost(), logger)
	if err != nil {
		return nil, err
	}
	if err = demo.RegisterClient(c); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}
