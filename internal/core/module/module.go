// Package module implements the typed module registry shared by the client
// and server host objects, and the lifecycle fan-out to registered modules.
//
// A module is any type with a Name method. It opts into notifications by
// implementing the matching capability interface (Initializer,
// PlayerDroppedHandler, ...). Modules are built by explicit factory closures;
// the registry never constructs anything through reflection.
package module

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zeusync/resourcekit/internal/core/engine"
	"github.com/zeusync/resourcekit/internal/core/events/bus"
	"github.com/zeusync/resourcekit/internal/core/observability/log"
	"github.com/zeusync/resourcekit/internal/core/scheduler"
)

var (
	ErrAlreadyRegistered  = errors.New("module was already added")
	ErrNotAModule         = errors.New("type does not implement Module")
	ErrConstructionFailed = errors.New("module construction failed")
	ErrModuleNotFound     = errors.New("module doesn't exist")
)

// Module is a unit of feature logic owned by a host object for the lifetime
// of the process.
type Module interface {
	Name() string
}

// Host is the surface of a host object that modules and the registry use.
type Host interface {
	// Name is the resource name.
	Name() string
	Logger() log.Log
	Scheduler() *scheduler.Scheduler
	Events() bus.EventBus
	Exports() *engine.Exports
	Modules() *Registry
}

// Factory builds a module of type T for host. It is the only supported way of
// constructing a module.
type Factory[T any] func(host Host) (T, error)

// typeKey identifies a concrete type without reflection: a typed nil pointer
// stored in an interface compares equal only to the same type.
type typeKey struct {
	token any
}

func keyOf[T any]() typeKey {
	return typeKey{token: (*T)(nil)}
}

// TypeName returns the unqualified name of T, without pointer markers or
// package path. It names modules in logs and errors.
func TypeName[T any]() string {
	name := fmt.Sprintf("%T", (*T)(nil))
	name = strings.TrimLeft(name, "*")
	base := name
	if i := strings.IndexByte(base, '['); i >= 0 {
		base = base[:i]
	}
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
