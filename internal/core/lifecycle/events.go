// Package lifecycle defines the notifications a host object fans out to its
// modules. Each notification kind is its own struct; Event is the union.
package lifecycle

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/resourcekit/internal/core/models"
	"github.com/zeusync/resourcekit/internal/core/nui"
)

type Kind uint8

const (
	KindModuleInitialized Kind = iota + 1
	KindResourceStarting
	KindResourceStart
	KindResourceStop
	KindPlayerConnecting
	KindPlayerJoining
	KindPlayerDropped
	KindPlayerClientInitialized
	KindPlayerDied
	KindPlayerResurrected
	KindEntityCreating
	KindEntityCreated
	KindEntityRemoved
	KindPlayerEnteredScope
	KindPlayerLeftScope
	KindPopulationPedCreating
	KindGameEventTriggered
	KindUIRequest
)

var kindNames = map[Kind]string{
	KindModuleInitialized:       "ModuleInitialized",
	KindResourceStarting:        "ResourceStarting",
	KindResourceStart:           "ResourceStart",
	KindResourceStop:            "ResourceStop",
	KindPlayerConnecting:        "PlayerConnecting",
	KindPlayerJoining:           "PlayerJoining",
	KindPlayerDropped:           "PlayerDropped",
	KindPlayerClientInitialized: "PlayerClientInitialized",
	KindPlayerDied:              "PlayerDied",
	KindPlayerResurrected:       "PlayerResurrected",
	KindEntityCreating:          "EntityCreating",
	KindEntityCreated:           "EntityCreated",
	KindEntityRemoved:           "EntityRemoved",
	KindPlayerEnteredScope:      "PlayerEnteredScope",
	KindPlayerLeftScope:         "PlayerLeftScope",
	KindPopulationPedCreating:   "PopulationPedCreating",
	KindGameEventTriggered:      "GameEventTriggered",
	KindUIRequest:               "UIRequest",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Callback is the name of the module method that receives this kind.
func (k Kind) Callback() string {
	return "On" + k.String()
}

// Event is implemented by every notification struct in this package.
type Event interface {
	Kind() Kind
}

type ModuleInitialized struct{}

type ResourceStarting struct {
	Resource string
}

type ResourceStart struct {
	Resource string
}

type ResourceStop struct {
	Resource string
}

// PlayerConnecting is delivered while the host is still admitting the player.
type PlayerConnecting struct {
	Player models.Player
}

type PlayerJoining struct {
	Player models.Player
}

type PlayerDropped struct {
	Player models.Player
	Reason string
}

// PlayerClientInitialized is delivered on the server once the player's client
// side of the resource finished its own initialization.
type PlayerClientInitialized struct {
	Player models.Player
}

type PlayerDied struct {
	Player models.Player
}

type PlayerResurrected struct {
	Player models.Player
}

type EntityCreating struct {
	Entity models.Entity
}

type EntityCreated struct {
	Entity models.Entity
}

type EntityRemoved struct {
	Entity models.Entity
}

// PlayerEnteredScope reports that Player became relevant to For.
type PlayerEnteredScope struct {
	Player models.Player
	For    models.PlayerID
}

type PlayerLeftScope struct {
	Player models.Player
	For    models.PlayerID
}

// PopulationPedCreating is delivered before the host spawns an ambient ped.
// Overrides lets modules change the model or position that will be used.
type PopulationPedCreating struct {
	Position  mgl64.Vec3
	Model     uint32
	Overrides *PedOverrides
}

type PedOverrides struct {
	Model    uint32
	Position *mgl64.Vec3
	Cancel   bool
}

type GameEventTriggered struct {
	Name string
	Data []int
}

// UIRequest is an inbound message from the UI layer. On the server Player is
// the client the request was relayed from.
type UIRequest struct {
	Player  models.PlayerID
	Message nui.Message
}

func (ModuleInitialized) Kind() Kind       { return KindModuleInitialized }
func (ResourceStarting) Kind() Kind        { return KindResourceStarting }
func (ResourceStart) Kind() Kind           { return KindResourceStart }
func (ResourceStop) Kind() Kind            { return KindResourceStop }
func (PlayerConnecting) Kind() Kind        { return KindPlayerConnecting }
func (PlayerJoining) Kind() Kind           { return KindPlayerJoining }
func (PlayerDropped) Kind() Kind           { return KindPlayerDropped }
func (PlayerClientInitialized) Kind() Kind { return KindPlayerClientInitialized }
func (PlayerDied) Kind() Kind              { return KindPlayerDied }
func (PlayerResurrected) Kind() Kind       { return KindPlayerResurrected }
func (EntityCreating) Kind() Kind          { return KindEntityCreating }
func (EntityCreated) Kind() Kind           { return KindEntityCreated }
func (EntityRemoved) Kind() Kind           { return KindEntityRemoved }
func (PlayerEnteredScope) Kind() Kind      { return KindPlayerEnteredScope }
func (PlayerLeftScope) Kind() Kind         { return KindPlayerLeftScope }
func (PopulationPedCreating) Kind() Kind   { return KindPopulationPedCreating }
func (GameEventTriggered) Kind() Kind      { return KindGameEventTriggered }
func (UIRequest) Kind() Kind               { return KindUIRequest }
