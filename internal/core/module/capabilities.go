package module

import (
	"fmt"
	"runtime/debug"

	"github.com/zeusync/resourcekit/internal/core/lifecycle"
)

// Initializer runs once, on the first scheduler slot after registration.
type Initializer interface {
	OnModuleInitialized() error
}

type ResourceStartingHandler interface {
	OnResourceStarting(ev lifecycle.ResourceStarting) error
}

type ResourceStartHandler interface {
	OnResourceStart(ev lifecycle.ResourceStart) error
}

type ResourceStopHandler interface {
	OnResourceStop(ev lifecycle.ResourceStop) error
}

type PlayerConnectingHandler interface {
	OnPlayerConnecting(ev lifecycle.PlayerConnecting) error
}

type PlayerJoiningHandler interface {
	OnPlayerJoining(ev lifecycle.PlayerJoining) error
}

type PlayerDroppedHandler interface {
	OnPlayerDropped(ev lifecycle.PlayerDropped) error
}

type PlayerClientInitializedHandler interface {
	OnPlayerClientInitialized(ev lifecycle.PlayerClientInitialized) error
}

type PlayerDiedHandler interface {
	OnPlayerDied(ev lifecycle.PlayerDied) error
}

type PlayerResurrectedHandler interface {
	OnPlayerResurrected(ev lifecycle.PlayerResurrected) error
}

type EntityCreatingHandler interface {
	OnEntityCreating(ev lifecycle.EntityCreating) error
}

type EntityCreatedHandler interface {
	OnEntityCreated(ev lifecycle.EntityCreated) error
}

type EntityRemovedHandler interface {
	OnEntityRemoved(ev lifecycle.EntityRemoved) error
}

type PlayerEnteredScopeHandler interface {
	OnPlayerEnteredScope(ev lifecycle.PlayerEnteredScope) error
}

type PlayerLeftScopeHandler interface {
	OnPlayerLeftScope(ev lifecycle.PlayerLeftScope) error
}

type PopulationPedCreatingHandler interface {
	OnPopulationPedCreating(ev lifecycle.PopulationPedCreating) error
}

type GameEventTriggeredHandler interface {
	OnGameEventTriggered(ev lifecycle.GameEventTriggered) error
}

type UIRequestHandler interface {
	OnUIRequest(ev lifecycle.UIRequest) error
}

// deliver calls the capability of m matching ev. handled is false when m does
// not implement it. A panic is returned as an error.
func deliver(m Module, ev lifecycle.Event) (handled bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			handled = true
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()

	switch e := ev.(type) {
	case lifecycle.ModuleInitialized:
		if h, ok := m.(Initializer); ok {
			return true, h.OnModuleInitialized()
		}
	case lifecycle.ResourceStarting:
		if h, ok := m.(ResourceStartingHandler); ok {
			return true, h.OnResourceStarting(e)
		}
	case lifecycle.ResourceStart:
		if h, ok := m.(ResourceStartHandler); ok {
			return true, h.OnResourceStart(e)
		}
	case lifecycle.ResourceStop:
		if h, ok := m.(ResourceStopHandler); ok {
			return true, h.OnResourceStop(e)
		}
	case lifecycle.PlayerConnecting:
		if h, ok := m.(PlayerConnectingHandler); ok {
			return true, h.OnPlayerConnecting(e)
		}
	case lifecycle.PlayerJoining:
		if h, ok := m.(PlayerJoiningHandler); ok {
			return true, h.OnPlayerJoining(e)
		}
	case lifecycle.PlayerDropped:
		if h, ok := m.(PlayerDroppedHandler); ok {
			return true, h.OnPlayerDropped(e)
		}
	case lifecycle.PlayerClientInitialized:
		if h, ok := m.(PlayerClientInitializedHandler); ok {
			return true, h.OnPlayerClientInitialized(e)
		}
	case lifecycle.PlayerDied:
		if h, ok := m.(PlayerDiedHandler); ok {
			return true, h.OnPlayerDied(e)
		}
	case lifecycle.PlayerResurrected:
		if h, ok := m.(PlayerResurrectedHandler); ok {
			return true, h.OnPlayerResurrected(e)
		}
	case lifecycle.EntityCreating:
		if h, ok := m.(EntityCreatingHandler); ok {
			return true, h.OnEntityCreating(e)
		}
	case lifecycle.EntityCreated:
		if h, ok := m.(EntityCreatedHandler); ok {
			return true, h.OnEntityCreated(e)
		}
	case lifecycle.EntityRemoved:
		if h, ok := m.(EntityRemovedHandler); ok {
			return true, h.OnEntityRemoved(e)
		}
	case lifecycle.PlayerEnteredScope:
		if h, ok := m.(PlayerEnteredScopeHandler); ok {
			return true, h.OnPlayerEnteredScope(e)
		}
	case lifecycle.PlayerLeftScope:
		if h, ok := m.(PlayerLeftScopeHandler); ok {
			return true, h.OnPlayerLeftScope(e)
		}
	case lifecycle.PopulationPedCreating:
		if h, ok := m.(PopulationPedCreatingHandler); ok {
			return true, h.OnPopulationPedCreating(e)
		}
	case lifecycle.GameEventTriggered:
		if h, ok := m.(GameEventTriggeredHandler); ok {
			return true, h.OnGameEventTriggered(e)
		}
	case lifecycle.UIRequest:
		if h, ok := m.(UIRequestHandler); ok {
			return true, h.OnUIRequest(e)
		}
	}
	return false, nil
}
