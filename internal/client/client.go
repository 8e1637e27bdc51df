// Package client is the front-end host object of a resource. It binds the
// client runtime's notifications to the module registry, tells the server
// once it finished initializing and owns the UI channel.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zeusync/resourcekit/internal/core/engine"
	"github.com/zeusync/resourcekit/internal/core/events/bus"
	"github.com/zeusync/resourcekit/internal/core/host"
	"github.com/zeusync/resourcekit/internal/core/lifecycle"
	"github.com/zeusync/resourcekit/internal/core/models"
	"github.com/zeusync/resourcekit/internal/core/nui"
	"github.com/zeusync/resourcekit/internal/core/observability/log"
	"github.com/zeusync/resourcekit/internal/core/scheduler"
)

var ErrInvalidConfig = errors.New("invalid client configuration")

// DefaultDeathWatchInterval is the default polling interval of the death watcher.
const DefaultDeathWatchInterval = time.Second

// Config holds client host configuration.
type Config struct {
	// Resource overrides the runtime's resource name.
	Resource string
	// UIIndent is the indentation of encoded UI messages. Empty is compact.
	UIIndent string

	DeathWatcher       bool
	DeathWatchInterval time.Duration

	GarbageCollector bool
	GCInterval       time.Duration
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		DeathWatchInterval: DefaultDeathWatchInterval,
		GCInterval:         host.DefaultGCInterval,
	}
}

// Client is the client-role host object.
type Client struct {
	*host.Core

	config  Config
	runtime engine.ClientRuntime

	initialized bool
	deathTick   *scheduler.Tick
	dead        map[models.PlayerID]struct{}
}

// New subscribes to every notification the client forwards and schedules its
// own initialization for the next slot.
func New(rt engine.ClientRuntime, config Config, logger log.Log) (*Client, error) {
	if rt == nil {
		return nil, fmt.Errorf("%w: nil runtime", ErrInvalidConfig)
	}
	if config.DeathWatchInterval <= 0 {
		config.DeathWatchInterval = DefaultDeathWatchInterval
	}

	c := &Client{
		Core:    host.New(rt, config.Resource, logger),
		config:  config,
		runtime: rt,
		dead:    make(map[models.PlayerID]struct{}),
	}

	err := c.ForwardAll(
		engine.EventClientResourceStarting,
		engine.EventClientResourceStart,
		engine.EventClientResourceStop,
		engine.EventGameEventTriggered,
		engine.EventPopulationPedCreating,
		engine.EventEntityCreated,
		engine.EventEntityRemoved,
	)
	if err == nil {
		err = c.Handle(engine.UIRequestEvent(c.Name()), c.onUIRequest)
	}
	if err == nil {
		err = c.Handle(engine.UIPushEvent(c.Name()), c.onUIPush)
	}
	if err != nil {
		c.Close()
		return nil, err
	}

	var tick *scheduler.Tick
	tick = c.Scheduler().AddTick("initialize", func() error {
		c.Scheduler().RemoveTick(tick)
		c.initialize()
		return nil
	}, 0)

	c.SetDeathWatcher(config.DeathWatcher)
	c.SetGarbageCollector(config.GarbageCollector, config.GCInterval)
	return c, nil
}

func (c *Client) initialize() {
	c.Log("Initializing...")
	if err := c.runtime.TriggerServerEvent(engine.ClientInitializedEvent(c.Name()), nil); err != nil {
		c.LogError(err, "initialize")
	}
	c.initialized = true
	c.Log("Initialized!")
}

// Initialized reports whether the one-shot initialization ran.
func (c *Client) Initialized() bool {
	return c.initialized
}

func (c *Client) Config() Config {
	return c.config
}

func (c *Client) LocalPlayer() models.PlayerID {
	return c.runtime.LocalPlayer()
}

// Players returns the players visible to this client.
func (c *Client) Players() []models.Player {
	return c.runtime.Players()
}

// SendUI encodes msg and hands it to the local UI layer. Encoding and
// delivery failures are logged and the message is dropped.
func (c *Client) SendUI(msg nui.Message) {
	payload, err := nui.EncodeString(msg, c.config.UIIndent)
	if err != nil {
		c.LogError(err, "SendUI")
		return
	}
	if err = c.runtime.SendNUIMessage(payload); err != nil {
		c.LogError(err, "SendUI")
	}
}

// onUIRequest handles a request from the local UI layer: modules see it
// first, then it is relayed to the server.
func (c *Client) onUIRequest(e bus.Event) error {
	msg, err := uiMessage(e.Data())
	if err != nil {
		c.LogError(err, "onUIRequest")
		return nil
	}
	_ = c.Dispatch(lifecycle.UIRequest{Player: c.runtime.LocalPlayer(), Message: msg})
	if err = c.runtime.TriggerServerEvent(engine.UIRequestEvent(c.Name()), msg); err != nil {
		c.LogError(err, "onUIRequest")
	}
	return nil
}

// onUIPush handles a UI message pushed by the server.
func (c *Client) onUIPush(e bus.Event) error {
	msg, err := uiMessage(e.Data())
	if err != nil {
		c.LogError(err, "onUIPush")
		return nil
	}
	c.SendUI(msg)
	return nil
}

func uiMessage(data any) (nui.Message, error) {
	switch v := data.(type) {
	case nui.Message:
		if v.Action == "" {
			return nui.Message{}, nui.ErrEmptyAction
		}
		return v, nil
	case json.RawMessage:
		return nui.Decode(v)
	case []byte:
		return nui.Decode(v)
	case string:
		return nui.Decode([]byte(v))
	default:
		return nui.Message{}, fmt.Errorf("unexpected ui payload %T", data)
	}
}
