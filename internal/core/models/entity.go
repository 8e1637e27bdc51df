package models

import (
	"strconv"

	"github.com/go-gl/mathgl/mgl64"
)

// EntityHandle is the host's numeric handle for a networked entity.
type EntityHandle uint32

// EntityKind distinguishes the entity classes the host reports.
type EntityKind uint8

const (
	EntityUnknown EntityKind = iota
	EntityPed
	EntityVehicle
	EntityObject
)

func (k EntityKind) String() string {
	switch k {
	case EntityPed:
		return "ped"
	case EntityVehicle:
		return "vehicle"
	case EntityObject:
		return "object"
	default:
		return "unknown"
	}
}

// Entity is a snapshot of a networked world entity.
type Entity struct {
	Handle   EntityHandle
	Kind     EntityKind
	Model    uint32
	Position mgl64.Vec3
	Owner    PlayerID
}

func (e Entity) String() string {
	return e.Kind.String() + "#" + strconv.FormatUint(uint64(e.Handle), 10)
}
