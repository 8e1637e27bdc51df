package sim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/resourcekit/internal/core/engine"
	"github.com/zeusync/resourcekit/internal/core/events/bus"
	"github.com/zeusync/resourcekit/internal/core/lifecycle"
	"github.com/zeusync/resourcekit/internal/core/models"
	"github.com/zeusync/resourcekit/internal/core/nui"
	"github.com/zeusync/resourcekit/internal/core/observability/log"
	"github.com/zeusync/resourcekit/internal/core/protocol"
	"github.com/zeusync/resourcekit/internal/core/scheduler"
)

var _ engine.ClientRuntime = (*Client)(nil)

// ServerSource is the bus source of events received from the server.
const ServerSource = "server"

// Client is a simulated client runtime. Like Server, its helpers publish
// synchronously and server pushes are posted to the scheduler.
type Client struct {
	*world

	resource  string
	logger    log.Log
	sched     *scheduler.Scheduler
	events    bus.EventBus
	exports   *engine.Exports
	transport protocol.ClientTransport

	local       atomic.Uint32
	uiAvailable atomic.Bool

	mu sync.Mutex
	ui []string
}

type ClientOptions struct {
	Resource  string
	Scheduler *scheduler.Scheduler
	Events    bus.EventBus
	Exports   *engine.Exports
	// Transport is optional. Without it TriggerServerEvent fails.
	Transport protocol.ClientTransport
	Logger    log.Log
}

func NewClient(opts ClientOptions) *Client {
	if opts.Logger == nil {
		opts.Logger = log.Provide()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = scheduler.New(scheduler.WithLogger(opts.Logger))
	}
	if opts.Events == nil {
		opts.Events = bus.New()
	}
	if opts.Exports == nil {
		opts.Exports = engine.NewExports()
	}
	c := &Client{
		world:     newWorld(),
		resource:  opts.Resource,
		logger:    opts.Logger.Named("runtime"),
		sched:     opts.Scheduler,
		events:    opts.Events,
		exports:   opts.Exports,
		transport: opts.Transport,
	}
	c.uiAvailable.Store(true)
	return c
}

// Connect joins the server and registers the local player under the id the
// server assigned. Without a transport a local player with id 1 is created.
func (c *Client) Connect(ctx context.Context, hello protocol.Hello) (models.Player, error) {
	id := models.PlayerID(1)
	if c.transport != nil {
		peer, err := c.transport.Connect(ctx, hello, c.onEnvelope)
		if err != nil {
			return models.Player{}, err
		}
		id = models.PlayerID(peer.ID)
	}
	c.local.Store(uint32(id))
	p := models.Player{ID: id, Name: hello.Name, Identifiers: hello.Identifiers}
	c.putPlayer(p)
	return p, nil
}

// Done is closed when the server connection is gone. It is nil without a
// transport.
func (c *Client) Done() <-chan struct{} {
	if c.transport == nil {
		return nil
	}
	return c.transport.Done()
}

func (c *Client) Close() error {
	if c.transport == nil {
		return nil
	}
	return c.transport.Close()
}

func (c *Client) onEnvelope(env protocol.Envelope) {
	c.sched.Post(env.Event, func() error {
		return publish(c.events, env.Event, ServerSource, env.Payload)
	})
}

func (c *Client) Resource() string                { return c.resource }
func (c *Client) Events() bus.EventBus            { return c.events }
func (c *Client) Scheduler() *scheduler.Scheduler { return c.sched }
func (c *Client) Exports() *engine.Exports        { return c.exports }

func (c *Client) LocalPlayer() models.PlayerID {
	return models.PlayerID(c.local.Load())
}

// SendNUIMessage records payload as delivered to the UI layer.
func (c *Client) SendNUIMessage(payload string) error {
	if !c.uiAvailable.Load() {
		return engine.ErrUIUnavailable
	}
	c.mu.Lock()
	c.ui = append(c.ui, payload)
	c.mu.Unlock()
	c.logger.Debug("NUI message sent", log.String("payload", payload))
	return nil
}

func (c *Client) TriggerServerEvent(name string, payload any) error {
	if c.transport == nil {
		return protocol.ErrNotConnected
	}
	env, err := protocol.NewEnvelope(name, payload)
	if err != nil {
		return err
	}
	return c.transport.Send(env)
}

// SetUIAvailable attaches or detaches the UI layer.
func (c *Client) SetUIAvailable(ok bool) {
	c.uiAvailable.Store(ok)
}

// UIMessages returns the payloads delivered to the UI layer so far.
func (c *Client) UIMessages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.ui))
	copy(out, c.ui)
	return out
}

// SubmitUI publishes msg as a request coming from the UI layer.
func (c *Client) SubmitUI(msg nui.Message) error {
	if msg.Action == "" {
		return nui.ErrEmptyAction
	}
	return publish(c.events, engine.UIRequestEvent(c.resource), "nui", msg)
}

func (c *Client) StartResource() error {
	return errors.Join(
		publish(c.events, engine.EventClientResourceStarting, c.resource, lifecycle.ResourceStarting{Resource: c.resource}),
		publish(c.events, engine.EventClientResourceStart, c.resource, lifecycle.ResourceStart{Resource: c.resource}),
	)
}

func (c *Client) StopResource() error {
	return publish(c.events, engine.EventClientResourceStop, c.resource, lifecycle.ResourceStop{Resource: c.resource})
}

// AddPlayer makes another player visible to this client.
func (c *Client) AddPlayer(p models.Player) {
	c.putPlayer(p)
}

func (c *Client) RemovePlayer(id models.PlayerID) bool {
	_, ok := c.removePlayer(id)
	return ok
}

// SetDead changes a player's death state. The host publishes nothing: death
// is only observable by polling Players.
func (c *Client) SetDead(id models.PlayerID, dead bool) bool {
	_, ok := c.updatePlayer(id, func(p *models.Player) { p.Dead = dead })
	return ok
}

func (c *Client) SetPosition(id models.PlayerID, pos mgl64.Vec3) bool {
	_, ok := c.updatePlayer(id, func(p *models.Player) { p.Position = pos })
	return ok
}

// GameEvent publishes a raw game event.
func (c *Client) GameEvent(name string, data ...int) error {
	return publish(c.events, engine.EventGameEventTriggered, c.resource, lifecycle.GameEventTriggered{Name: name, Data: data})
}

// SpawnPed publishes populationPedCreating and returns the overrides handlers
// applied. A cancelled spawn creates no entity.
func (c *Client) SpawnPed(model uint32, pos mgl64.Vec3) (models.Entity, bool) {
	overrides := &lifecycle.PedOverrides{}
	ev := lifecycle.PopulationPedCreating{Position: pos, Model: model, Overrides: overrides}
	if err := publish(c.events, engine.EventPopulationPedCreating, c.resource, ev); err != nil {
		c.logger.Warn("populationPedCreating handlers failed", log.Error(err))
	}
	if overrides.Cancel {
		return models.Entity{}, false
	}
	if overrides.Model != 0 {
		model = overrides.Model
	}
	if overrides.Position != nil {
		pos = *overrides.Position
	}
	return c.SpawnEntity(models.EntityPed, model, pos), true
}

func (c *Client) SpawnEntity(kind models.EntityKind, model uint32, pos mgl64.Vec3) models.Entity {
	e := c.newEntity(kind, model, pos, c.LocalPlayer())
	c.putEntity(e)
	if err := publish(c.events, engine.EventEntityCreated, e.String(), lifecycle.EntityCreated{Entity: e}); err != nil {
		c.logger.Warn("entityCreated handlers failed", log.Error(err))
	}
	return e
}

func (c *Client) RemoveEntity(h models.EntityHandle) bool {
	e, ok := c.removeEntity(h)
	if !ok {
		return false
	}
	if err := publish(c.events, engine.EventEntityRemoved, e.String(), lifecycle.EntityRemoved{Entity: e}); err != nil {
		c.logger.Warn("entityRemoved handlers failed", log.Error(err))
	}
	return true
}
