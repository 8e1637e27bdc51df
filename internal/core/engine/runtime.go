// Package engine describes the host runtime a resource runs inside: its
// named-event registry, its cooperative scheduler, the world it can enumerate
// and the channels it offers towards the UI and the other process role.
package engine

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/resourcekit/internal/core/events/bus"
	"github.com/zeusync/resourcekit/internal/core/models"
	"github.com/zeusync/resourcekit/internal/core/scheduler"
)

// ErrUIUnavailable is returned by SendNUIMessage when no UI layer is attached.
var ErrUIUnavailable = errors.New("ui layer is unavailable")

// Runtime is the part of the host shared by both process roles.
type Runtime interface {
	// Resource is the identifier of the resource being run.
	Resource() string
	// Events is the host's named-event registry. Host notifications are
	// published on it with a lifecycle struct as data, remote events with
	// json.RawMessage data and the sending player as source.
	Events() bus.EventBus
	Scheduler() *scheduler.Scheduler
	Exports() *Exports
	// CollectGarbage asks the runtime to reclaim memory now.
	CollectGarbage()
}

// ClientRuntime is the runtime seen by the client (front-end) role.
type ClientRuntime interface {
	Runtime

	LocalPlayer() models.PlayerID
	Players() []models.Player
	// SendNUIMessage hands an encoded UI message to the local UI layer.
	SendNUIMessage(payload string) error
	// TriggerServerEvent sends a named event with a JSON payload to the server.
	TriggerServerEvent(name string, payload any) error
}

// ServerRuntime is the runtime seen by the server (back-end) role.
type ServerRuntime interface {
	Runtime

	Players() []models.Player
	Player(id models.PlayerID) (models.Player, bool)
	Entities() []models.Entity
	// TriggerClientEvent sends a named event with a JSON payload to one client.
	TriggerClientEvent(name string, target models.PlayerID, payload any) error
	// TriggerAllClientsEvent sends a named event to every connected client.
	TriggerAllClientsEvent(name string, payload any) error
}

// PlayersNear filters players to those within radius of pos, in input order.
func PlayersNear(players []models.Player, pos mgl64.Vec3, radius float64) []models.Player {
	out := make([]models.Player, 0, len(players))
	for _, p := range players {
		if p.DistanceTo(pos) <= radius {
			out = append(out, p)
		}
	}
	return out
}
