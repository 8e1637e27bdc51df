// Package sim provides in-process host runtimes for both process roles. They
// publish host notifications on the bus the way a game host would, accept
// network input through protocol transports and hand it to the scheduler so
// every callback runs on the single worker.
package sim

import (
	"runtime"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/resourcekit/internal/core/events/bus"
	"github.com/zeusync/resourcekit/internal/core/models"
)

// world is the player and entity state shared by both runtimes.
type world struct {
	mu       sync.RWMutex
	players  map[models.PlayerID]models.Player
	entities map[models.EntityHandle]models.Entity

	nextEntity atomic.Uint32
	gcRuns     atomic.Int64
}

func newWorld() *world {
	return &world{
		players:  make(map[models.PlayerID]models.Player),
		entities: make(map[models.EntityHandle]models.Entity),
	}
}

func (w *world) Players() []models.Player {
	w.mu.RLock()
	out := make([]models.Player, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, p)
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (w *world) Player(id models.PlayerID) (models.Player, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.players[id]
	return p, ok
}

func (w *world) Entities() []models.Entity {
	w.mu.RLock()
	out := make([]models.Entity, 0, len(w.entities))
	for _, e := range w.entities {
		out = append(out, e)
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

func (w *world) putPlayer(p models.Player) {
	w.mu.Lock()
	w.players[p.ID] = p
	w.mu.Unlock()
}

func (w *world) removePlayer(id models.PlayerID) (models.Player, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[id]
	delete(w.players, id)
	return p, ok
}

func (w *world) updatePlayer(id models.PlayerID, fn func(*models.Player)) (models.Player, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[id]
	if !ok {
		return p, false
	}
	fn(&p)
	w.players[id] = p
	return p, true
}

func (w *world) newEntity(kind models.EntityKind, model uint32, pos mgl64.Vec3, owner models.PlayerID) models.Entity {
	return models.Entity{
		Handle:   models.EntityHandle(w.nextEntity.Add(1)),
		Kind:     kind,
		Model:    model,
		Position: pos,
		Owner:    owner,
	}
}

func (w *world) putEntity(e models.Entity) {
	w.mu.Lock()
	w.entities[e.Handle] = e
	w.mu.Unlock()
}

func (w *world) removeEntity(h models.EntityHandle) (models.Entity, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[h]
	delete(w.entities, h)
	return e, ok
}

// CollectGarbage forces a collection and returns freed memory to the OS.
func (w *world) CollectGarbage() {
	runtime.GC()
	debug.FreeOSMemory()
	w.gcRuns.Add(1)
}

// GCRuns counts CollectGarbage calls.
func (w *world) GCRuns() int64 {
	return w.gcRuns.Load()
}

func publish(events bus.EventBus, name, source string, data any) error {
	return events.Publish(bus.NewEvent(name, source, data))
}
