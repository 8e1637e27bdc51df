// Package server is the back-end host object of a resource. It binds the
// server runtime's notifications to the module registry and offers player,
// entity and UI helpers to modules.
package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/resourcekit/internal/core/engine"
	"github.com/zeusync/resourcekit/internal/core/events/bus"
	"github.com/zeusync/resourcekit/internal/core/host"
	"github.com/zeusync/resourcekit/internal/core/lifecycle"
	"github.com/zeusync/resourcekit/internal/core/models"
	"github.com/zeusync/resourcekit/internal/core/nui"
	"github.com/zeusync/resourcekit/internal/core/observability/log"
)

// Config holds server host configuration.
type Config struct {
	// Resource overrides the runtime's resource name.
	Resource string

	GarbageCollector bool
	GCInterval       time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		GarbageCollector: true,
		GCInterval:       host.DefaultGCInterval,
	}
}

// Server is the server-role host object.
type Server struct {
	*host.Core

	config  Config
	runtime engine.ServerRuntime
}

// New subscribes to every notification the server forwards and schedules the
// memory-reclamation hint when enabled. Modules are added afterwards with
// module.Add(s.Modules(), ...).
func New(rt engine.ServerRuntime, config Config, logger log.Log) (*Server, error) {
	if rt == nil {
		return nil, fmt.Errorf("%w: nil runtime", ErrInvalidConfig)
	}
	if config.GCInterval < 0 {
		return nil, fmt.Errorf("%w: negative gc interval", ErrInvalidConfig)
	}

	s := &Server{
		Core:    host.New(rt, config.Resource, logger),
		config:  config,
		runtime: rt,
	}

	err := s.ForwardAll(
		engine.EventResourceStarting,
		engine.EventResourceStart,
		engine.EventResourceStop,
		engine.EventPlayerConnecting,
		engine.EventPlayerJoining,
		engine.EventPlayerDropped,
		engine.EventPlayerEnteredScope,
		engine.EventPlayerLeftScope,
		engine.EventEntityCreating,
		engine.EventEntityCreated,
		engine.EventEntityRemoved,
	)
	if err == nil {
		err = s.Handle(engine.ClientInitializedEvent(s.Name()), s.onPlayerClientInitialized)
	}
	if err == nil {
		err = s.Handle(engine.UIRequestEvent(s.Name()), s.onUIRequest)
	}
	if err != nil {
		s.Close()
		return nil, err
	}

	s.SetGarbageCollector(config.GarbageCollector, config.GCInterval)
	return s, nil
}

func (s *Server) Config() Config {
	return s.config
}

func (s *Server) onPlayerClientInitialized(e bus.Event) error {
	player, err := s.source(e)
	if err != nil {
		s.LogError(err, "onPlayerClientInitialized")
		return nil
	}
	s.Logger().Debug("Player client initialized", log.String("player", player.ID.String()))
	_ = s.Dispatch(lifecycle.PlayerClientInitialized{Player: player})
	return nil
}

func (s *Server) onUIRequest(e bus.Event) error {
	player, err := s.source(e)
	if err != nil {
		s.LogError(err, "onUIRequest")
		return nil
	}
	raw, ok := e.Data().(json.RawMessage)
	if !ok {
		s.LogError(fmt.Errorf("unexpected payload %T", e.Data()), "onUIRequest")
		return nil
	}
	msg, err := nui.Decode(raw)
	if err != nil {
		s.LogError(err, "onUIRequest")
		return nil
	}
	_ = s.Dispatch(lifecycle.UIRequest{Player: player.ID, Message: msg})
	return nil
}

// source resolves the player a network event came from.
func (s *Server) source(e bus.Event) (models.Player, error) {
	id, err := models.ParsePlayerID(e.Source())
	if err != nil {
		return models.Player{}, fmt.Errorf("bad event source %q: %w", e.Source(), err)
	}
	p, ok := s.runtime.Player(id)
	if !ok {
		return models.Player{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	return p, nil
}

// Players returns the connected players.
func (s *Server) Players() []models.Player {
	return s.runtime.Players()
}

func (s *Server) Player(id models.PlayerID) (models.Player, bool) {
	return s.runtime.Player(id)
}

// PlayersNear returns the players within radius of pos.
func (s *Server) PlayersNear(pos mgl64.Vec3, radius float64) []models.Player {
	return engine.PlayersNear(s.runtime.Players(), pos, radius)
}

func (s *Server) Entities() []models.Entity {
	return s.runtime.Entities()
}

// SendUI pushes msg to the UI of one player. Failures are logged and the
// message is dropped.
func (s *Server) SendUI(player models.PlayerID, msg nui.Message) {
	if !s.validUI(msg) {
		return
	}
	if err := s.runtime.TriggerClientEvent(engine.UIPushEvent(s.Name()), player, msg); err != nil {
		s.LogError(err, "SendUI")
	}
}

// BroadcastUI pushes msg to the UI of every connected player.
func (s *Server) BroadcastUI(msg nui.Message) {
	if !s.validUI(msg) {
		return
	}
	if err := s.runtime.TriggerAllClientsEvent(engine.UIPushEvent(s.Name()), msg); err != nil {
		s.LogError(err, "BroadcastUI")
	}
}

// validUI checks that msg encodes. Indentation is left to the client, which
// re-encodes every pushed message for its UI layer.
func (s *Server) validUI(msg nui.Message) bool {
	if _, err := nui.Encode(msg, ""); err != nil {
		s.LogError(err, "SendUI")
		return false
	}
	return true
}
