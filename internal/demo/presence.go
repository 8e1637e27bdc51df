package demo

import (
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/resourcekit/internal/core/lifecycle"
	"github.com/zeusync/resourcekit/internal/core/models"
	"github.com/zeusync/resourcekit/internal/core/module"
	"github.com/zeusync/resourcekit/internal/core/nui"
	"github.com/zeusync/resourcekit/internal/core/observability/log"
)

const (
	ActionPresenceWelcome = "presence:welcome"
	ActionPresenceLeft    = "presence:left"
)

// World is the server surface Presence reads players from and pushes UI
// through.
type World interface {
	PlayerUI
	BroadcastUI(msg nui.Message)
	Player(id models.PlayerID) (models.Player, bool)
	PlayersNear(pos mgl64.Vec3, radius float64) []models.Player
}

type Welcome struct {
	Name   string `json:"name"`
	Online int    `json:"online"`
}

type Left struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Presence tracks which players finished loading and who is in whose scope.
type Presence struct {
	module.Base

	world World

	mu    sync.Mutex
	ready map[models.PlayerID]struct{}
	scope map[models.PlayerID]map[models.PlayerID]struct{}
}

func NewPresence(world World) module.Factory[*Presence] {
	return func(host module.Host) (*Presence, error) {
		return &Presence{
			Base:  module.NewBase[Presence](host),
			world: world,
			ready: make(map[models.PlayerID]struct{}),
			scope: make(map[models.PlayerID]map[models.PlayerID]struct{}),
		}, nil
	}
}

func (p *Presence) OnPlayerConnecting(ev lifecycle.PlayerConnecting) error {
	fields := []log.Field{log.String("player", ev.Player.Name)}
	if license, ok := ev.Player.Identifier("license:"); ok {
		fields = append(fields, log.String("license", license))
	}
	p.Log("Player connecting", fields...)
	return nil
}

func (p *Presence) OnPlayerClientInitialized(ev lifecycle.PlayerClientInitialized) error {
	p.mu.Lock()
	p.ready[ev.Player.ID] = struct{}{}
	online := len(p.ready)
	p.mu.Unlock()

	p.world.SendUI(ev.Player.ID, nui.New(ActionPresenceWelcome, Welcome{Name: ev.Player.Name, Online: online}))
	return nil
}

func (p *Presence) OnPlayerDropped(ev lifecycle.PlayerDropped) error {
	p.mu.Lock()
	_, wasReady := p.ready[ev.Player.ID]
	delete(p.ready, ev.Player.ID)
	delete(p.scope, ev.Player.ID)
	for _, seen := range p.scope {
		delete(seen, ev.Player.ID)
	}
	p.mu.Unlock()

	if wasReady {
		p.world.BroadcastUI(nui.New(ActionPresenceLeft, Left{Name: ev.Player.Name, Reason: ev.Reason}))
	}
	return nil
}

func (p *Presence) OnPlayerEnteredScope(ev lifecycle.PlayerEnteredScope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	seen, ok := p.scope[ev.For]
	if !ok {
		seen = make(map[models.PlayerID]struct{})
		p.scope[ev.For] = seen
	}
	seen[ev.Player.ID] = struct{}{}
	return nil
}

func (p *Presence) OnPlayerLeftScope(ev lifecycle.PlayerLeftScope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.scope[ev.For], ev.Player.ID)
	return nil
}

// Online returns the number of players whose client finished initializing.
func (p *Presence) Online() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ready)
}

// InScope returns the sorted ids of the players viewer currently sees.
func (p *Presence) InScope(viewer models.PlayerID) []models.PlayerID {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.PlayerID, 0, len(p.scope[viewer]))
	for id := range p.scope[viewer] {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Nearby returns the other players within radius of id.
func (p *Presence) Nearby(id models.PlayerID, radius float64) []models.Player {
	self, ok := p.world.Player(id)
	if !ok {
		return nil
	}
	var out []models.Player
	for _, other := range p.world.PlayersNear(self.Position, radius) {
		if other.ID != id {
			out = append(out, other)
		}
	}
	return out
}
