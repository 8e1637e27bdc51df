package models

import (
	"strconv"

	"github.com/go-gl/mathgl/mgl64"
)

// PlayerID is the host's per-connection player identifier.
type PlayerID uint32

// NoPlayer is the zero PlayerID. The host never hands it out.
const NoPlayer PlayerID = 0

func (id PlayerID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParsePlayerID parses the decimal form produced by PlayerID.String.
func ParsePlayerID(s string) (PlayerID, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return NoPlayer, err
	}
	return PlayerID(v), nil
}

// Player is a snapshot of a connected player as seen by the host.
type Player struct {
	ID          PlayerID
	Name        string
	Identifiers []string
	Position    mgl64.Vec3
	Dead        bool
}

// DistanceTo returns the euclidean distance between the player and pos.
func (p Player) DistanceTo(pos mgl64.Vec3) float64 {
	return p.Position.Sub(pos).Len()
}

// Identifier returns the first identifier with the given prefix, e.g. "license:".
func (p Player) Identifier(prefix string) (string, bool) {
	for _, id := range p.Identifiers {
		if len(id) >= len(prefix) && id[:len(prefix)] == prefix {
			return id, true
		}
	}
	return "", false
}
