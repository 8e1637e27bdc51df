package sim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/resourcekit/internal/core/engine"
	"github.com/zeusync/resourcekit/internal/core/events/bus"
	"github.com/zeusync/resourcekit/internal/core/lifecycle"
	"github.com/zeusync/resourcekit/internal/core/models"
	"github.com/zeusync/resourcekit/internal/core/observability/log"
	"github.com/zeusync/resourcekit/internal/core/protocol"
	"github.com/zeusync/resourcekit/internal/core/scheduler"
)

var (
	_ engine.ServerRuntime   = (*Server)(nil)
	_ protocol.ServerHandler = (*Server)(nil)
)

// localPlayerBase keeps ids of players added with Connect apart from the
// ids transports assign.
const localPlayerBase = 1 << 16

// Server is a simulated server runtime. Simulation helpers publish
// synchronously and must be called from the scheduler worker (or from a test
// driving Step). Transport callbacks are posted to the scheduler.
type Server struct {
	*world

	resource  string
	logger    log.Log
	sched     *scheduler.Scheduler
	events    bus.EventBus
	exports   *engine.Exports
	transport protocol.ServerTransport

	nextLocal uint32
}

type ServerOptions struct {
	Resource  string
	Scheduler *scheduler.Scheduler
	Events    bus.EventBus
	Exports   *engine.Exports
	// Transport is optional. Without it client events are dropped.
	Transport protocol.ServerTransport
	Logger    log.Log
}

func NewServer(opts ServerOptions) *Server {
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
	return &Server{
		world:     newWorld(),
		resource:  opts.Resource,
		logger:    opts.Logger.Named("runtime"),
		sched:     opts.Scheduler,
		events:    opts.Events,
		exports:   opts.Exports,
		transport: opts.Transport,
		nextLocal: localPlayerBase,
	}
}

// Listen starts the transport, if any.
func (s *Server) Listen(ctx context.Context) error {
	if s.transport == nil {
		return nil
	}
	return s.transport.Start(ctx, s)
}

func (s *Server) Close() error {
	if s.transport == nil {
		return nil
	}
	return s.transport.Close()
}

func (s *Server) Resource() string                { return s.resource }
func (s *Server) Events() bus.EventBus            { return s.events }
func (s *Server) Scheduler() *scheduler.Scheduler { return s.sched }
func (s *Server) Exports() *engine.Exports        { return s.exports }

func (s *Server) TriggerClientEvent(name string, target models.PlayerID, payload any) error {
	if s.transport == nil {
		return protocol.ErrNotConnected
	}
	env, err := protocol.NewEnvelope(name, payload)
	if err != nil {
		return err
	}
	return s.transport.Send(protocol.PeerID(target), env)
}

func (s *Server) TriggerAllClientsEvent(name string, payload any) error {
	if s.transport == nil {
		return protocol.ErrNotConnected
	}
	env, err := protocol.NewEnvelope(name, payload)
	if err != nil {
		return err
	}
	return s.transport.Broadcast(env)
}

// OnConnect admits a network peer as a player on the next slot.
func (s *Server) OnConnect(peer protocol.Peer) {
	player := models.Player{
		ID:          models.PlayerID(peer.ID),
		Name:        peer.Name,
		Identifiers: peer.Identifiers,
	}
	s.sched.Post("playerConnecting", func() error {
		s.Connect(player)
		return nil
	})
}

// OnEnvelope republishes a client event on the bus on the next slot. The
// payload stays json.RawMessage and the source is the player id.
func (s *Server) OnEnvelope(peer protocol.Peer, env protocol.Envelope) {
	s.sched.Post(env.Event, func() error {
		if _, ok := s.Player(models.PlayerID(peer.ID)); !ok {
			return fmt.Errorf("event %s from unknown player %s", env.Event, peer.ID)
		}
		return publish(s.events, env.Event, peer.ID.String(), env.Payload)
	})
}

func (s *Server) OnDisconnect(peer protocol.Peer, reason string) {
	s.sched.Post("playerDropped", func() error {
		s.Drop(models.PlayerID(peer.ID), reason)
		return nil
	})
}

// StartResource publishes the resource starting and start notifications.
func (s *Server) StartResource() error {
	return errors.Join(
		publish(s.events, engine.EventResourceStarting, s.resource, lifecycle.ResourceStarting{Resource: s.resource}),
		publish(s.events, engine.EventResourceStart, s.resource, lifecycle.ResourceStart{Resource: s.resource}),
	)
}

func (s *Server) StopResource() error {
	return publish(s.events, engine.EventResourceStop, s.resource, lifecycle.ResourceStop{Resource: s.resource})
}

// Connect adds a player and publishes playerConnecting then playerJoining.
// A zero id is replaced by a fresh local one.
func (s *Server) Connect(p models.Player) models.Player {
	if p.ID == models.NoPlayer {
		s.nextLocal++
		p.ID = models.PlayerID(s.nextLocal)
	}
	s.putPlayer(p)
	src := p.ID.String()
	if err := publish(s.events, engine.EventPlayerConnecting, src, lifecycle.PlayerConnecting{Player: p}); err != nil {
		s.logger.Warn("playerConnecting handlers failed", log.Error(err))
	}
	if err := publish(s.events, engine.EventPlayerJoining, src, lifecycle.PlayerJoining{Player: p}); err != nil {
		s.logger.Warn("playerJoining handlers failed", log.Error(err))
	}
	return p
}

// Drop removes a player and publishes playerDropped. Unknown ids are ignored.
func (s *Server) Drop(id models.PlayerID, reason string) bool {
	p, ok := s.removePlayer(id)
	if !ok {
		return false
	}
	if err := publish(s.events, engine.EventPlayerDropped, id.String(), lifecycle.PlayerDropped{Player: p, Reason: reason}); err != nil {
		s.logger.Warn("playerDropped handlers failed", log.Error(err))
	}
	return true
}

func (s *Server) SetPosition(id models.PlayerID, pos mgl64.Vec3) bool {
	_, ok := s.updatePlayer(id, func(p *models.Player) { p.Position = pos })
	return ok
}

// SpawnEntity publishes entityCreating, stores the entity and publishes
// entityCreated.
func (s *Server) SpawnEntity(kind models.EntityKind, model uint32, pos mgl64.Vec3, owner models.PlayerID) models.Entity {
	e := s.newEntity(kind, model, pos, owner)
	if err := publish(s.events, engine.EventEntityCreating, e.String(), lifecycle.EntityCreating{Entity: e}); err != nil {
		s.logger.Warn("entityCreating handlers failed", log.Error(err))
	}
	s.putEntity(e)
	if err := publish(s.events, engine.EventEntityCreated, e.String(), lifecycle.EntityCreated{Entity: e}); err != nil {
		s.logger.Warn("entityCreated handlers failed", log.Error(err))
	}
	return e
}

func (s *Server) RemoveEntity(h models.EntityHandle) bool {
	e, ok := s.removeEntity(h)
	if !ok {
		return false
	}
	if err := publish(s.events, engine.EventEntityRemoved, e.String(), lifecycle.EntityRemoved{Entity: e}); err != nil {
		s.logger.Warn("entityRemoved handlers failed", log.Error(err))
	}
	return true
}

// EnterScope reports that player became relevant to viewer.
func (s *Server) EnterScope(player, viewer models.PlayerID) bool {
	p, ok := s.Player(player)
	if !ok {
		return false
	}
	_ = publish(s.events, engine.EventPlayerEnteredScope, player.String(), lifecycle.PlayerEnteredScope{Player: p, For: viewer})
	return true
}

func (s *Server) LeaveScope(player, viewer models.PlayerID) bool {
	p, ok := s.Player(player)
	if !ok {
		return false
	}
	_ = publish(s.events, engine.EventPlayerLeftScope, player.String(), lifecycle.PlayerLeftScope{Player: p, For: viewer})
	return true
}

// ClientEvent publishes name as if sent by player over the network.
func (s *Server) ClientEvent(player models.PlayerID, name string, payload any) error {
	env, err := protocol.NewEnvelope(name, payload)
	if err != nil {
		return err
	}
	raw := env.Payload
	if raw == nil {
		raw = json.RawMessage{}
	}
	return publish(s.events, name, player.String(), raw)
}
