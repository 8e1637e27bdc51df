package module

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/zeusync/resourcekit/internal/core/lifecycle"
	"github.com/zeusync/resourcekit/internal/core/observability/log"
	"github.com/zeusync/resourcekit/internal/core/scheduler"
)

type entry struct {
	key      typeKey
	name     string
	module   Module
	instance any
	logger   log.Log
}

// Registry is the ordered set of modules of one host object. Registration
// order is dispatch order. It only grows.
type Registry struct {
	host   Host
	logger log.Log

	mu      sync.RWMutex
	entries []*entry
}

func NewRegistry(host Host) *Registry {
	return &Registry{
		host:   host,
		logger: host.Logger(),
	}
}

// Add constructs a module of type T with factory and appends it to r.
//
// It fails without side effects when T is already registered, including by
// its own factory, or does not implement Module. A factory error or panic is reported as
// ErrConstructionFailed and the module is not added. Every failure is logged.
//
// On success the module's one-shot initialization is scheduled for the next
// scheduler slot, so modules added later in the same setup are visible to it.
func Add[T any](r *Registry, factory Factory[T]) error {
	key := keyOf[T]()
	name := TypeName[T]()
	site := caller()

	if r.has(key) {
		err := fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
		r.logger.Error("Module "+name+" was already added!", log.String("caller", site), log.Error(err))
		return err
	}

	var zero T
	if _, ok := any(zero).(Module); !ok {
		err := fmt.Errorf("%w: %s", ErrNotAModule, name)
		r.logger.Error("Trying to add "+name+" that is not a Module!", log.String("caller", site), log.Error(err))
		return err
	}

	instance, mod, err := construct(factory, r.host)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrConstructionFailed, name, err)
		r.logger.Named(name).Error("in Constructor", log.String("caller", site), log.Error(err))
		return err
	}

	e := &entry{
		key:      key,
		name:     name,
		module:   mod,
		instance: instance,
		logger:   r.logger.Named(name),
	}

	// The factory may have added T itself, or a concurrent Add may have won.
	r.mu.Lock()
	if r.hasLocked(key) {
		r.mu.Unlock()
		err = fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
		r.logger.Error("Module "+name+" was already added!", log.String("caller", site), log.Error(err))
		return err
	}
	r.entries = append(r.entries, e)
	r.mu.Unlock()

	e.logger.Info("Instance created!")
	r.scheduleInitialize(e)
	return nil
}

func construct[T any](factory Factory[T], host Host) (instance T, mod Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	if factory == nil {
		return instance, nil, errors.New("nil factory")
	}
	instance, err = factory(host)
	if err != nil {
		return instance, nil, err
	}
	mod = any(instance).(Module)
	// A typed nil result panics here and is reported as a construction failure.
	_ = mod.Name()
	return instance, mod, nil
}

func (r *Registry) scheduleInitialize(e *entry) {
	sched := r.host.Scheduler()
	var tick *scheduler.Tick
	tick = sched.AddTick(e.name+".initialize", func() error {
		sched.RemoveTick(tick)
		e.logger.Info("Initializing...")
		if _, err := deliver(e.module, lifecycle.ModuleInitialized{}); err != nil {
			e.logger.Error("in "+lifecycle.KindModuleInitialized.Callback(), log.Error(err))
			return nil
		}
		e.logger.Info("Initialized!")
		return nil
	}, 0)
}

// Get returns the registered module of type T. A miss is a programming error:
// callers are expected to ask only after setup, and should stop on
// ErrModuleNotFound.
func Get[T any](r *Registry) (T, error) {
	key := keyOf[T]()
	for _, e := range r.snapshot() {
		if e.key == key {
			if v, ok := e.instance.(T); ok {
				return v, nil
			}
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: %s", ErrModuleNotFound, TypeName[T]())
}

// MustGet is Get that panics on a miss.
func MustGet[T any](r *Registry) T {
	v, err := Get[T](r)
	if err != nil {
		panic(err)
	}
	return v
}

// Has reports whether a module of exactly type T is registered.
func Has[T any](r *Registry) bool {
	return r.has(keyOf[T]())
}

// HasName reports whether a module with the given type name is registered.
func (r *Registry) HasName(name string) bool {
	for _, e := range r.snapshot() {
		if e.name == name {
			return true
		}
	}
	return false
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Modules returns the registered modules in registration order.
func (r *Registry) Modules() []Module {
	entries := r.snapshot()
	out := make([]Module, len(entries))
	for i, e := range entries {
		out[i] = e.module
	}
	return out
}

// Names returns the registered type names in registration order.
func (r *Registry) Names() []string {
	entries := r.snapshot()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.name
	}
	return out
}

// Dispatch delivers ev to every module implementing the matching capability,
// in registration order. A module's error or panic is logged with its name
// and the callback name; delivery to the remaining modules continues. The
// joined failures are returned for callers that want them.
func (r *Registry) Dispatch(ev lifecycle.Event) error {
	callback := ev.Kind().Callback()
	var all error
	for _, e := range r.snapshot() {
		handled, err := deliver(e.module, ev)
		if !handled || err == nil {
			continue
		}
		e.logger.Error("in "+callback, log.Error(err))
		all = errors.Join(all, fmt.Errorf("%s in %s: %w", e.name, callback, err))
	}
	return all
}

func (r *Registry) has(key typeKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasLocked(key)
}

func (r *Registry) hasLocked(key typeKey) bool {
	for _, e := range r.entries {
		if e.key == key {
			return true
		}
	}
	return false
}

func (r *Registry) snapshot() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// caller names the call site of Add for setup error logs.
func caller() string {
	pcs := make([]uintptr, 8)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			return fmt.Sprintf("%s:%d", frame.File, frame.Line)
		}
		if !more {
			return "unknown"
		}
	}
}
