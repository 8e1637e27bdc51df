// Package host holds what the client and server host objects share: the
// module registry, the facade, lifecycle forwarding from the runtime's bus
// and the periodic memory-reclamation hint.
package host

import (
	"sync"
	"time"

	"github.com/zeusync/resourcekit/internal/core/engine"
	"github.com/zeusync/resourcekit/internal/core/events/bus"
	"github.com/zeusync/resourcekit/internal/core/lifecycle"
	"github.com/zeusync/resourcekit/internal/core/module"
	"github.com/zeusync/resourcekit/internal/core/observability/log"
	"github.com/zeusync/resourcekit/internal/core/scheduler"
)

var _ module.Host = (*Core)(nil)

// DefaultGCInterval is the default delay between two memory-reclamation hints.
const DefaultGCInterval = 60 * time.Second

// Core implements module.Host on top of an engine.Runtime.
type Core struct {
	*module.Script

	name    string
	logger  log.Log
	runtime engine.Runtime
	modules *module.Registry

	mu   sync.Mutex
	subs []bus.Subscription

	gcInterval time.Duration
	gcTimer    *scheduler.Timer
}

// New builds a Core for the resource name. An empty name falls back to the
// runtime's resource. Every log line is prefixed with the resource name.
func New(rt engine.Runtime, name string, logger log.Log) *Core {
	if name == "" {
		name = rt.Resource()
	}
	if logger == nil {
		logger = log.Provide()
	}
	c := &Core{
		name:       name,
		logger:     logger.Named(name),
		runtime:    rt,
		gcInterval: DefaultGCInterval,
	}
	c.Script = module.NewScript(c, c.logger)
	c.modules = module.NewRegistry(c)
	return c
}

func (c *Core) Name() string                    { return c.name }
func (c *Core) Logger() log.Log                 { return c.logger }
func (c *Core) Scheduler() *scheduler.Scheduler { return c.runtime.Scheduler() }
func (c *Core) Events() bus.EventBus            { return c.runtime.Events() }
func (c *Core) Exports() *engine.Exports        { return c.runtime.Exports() }
func (c *Core) Modules() *module.Registry       { return c.modules }

// Dispatch fans ev out to every module. Failures are logged per module.
func (c *Core) Dispatch(ev lifecycle.Event) error {
	return c.modules.Dispatch(ev)
}

// Handle subscribes fn to a runtime event for the lifetime of the host.
func (c *Core) Handle(name string, fn bus.EventHandler) error {
	sub, err := c.AddEvent(name, fn)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return nil
}

// Forward relays a runtime notification whose data is a lifecycle event to
// the modules.
func (c *Core) Forward(name string) error {
	return c.Handle(name, func(e bus.Event) error {
		ev, ok := e.Data().(lifecycle.Event)
		if !ok {
			c.logger.Warn("Unexpected payload", log.String("event", name), log.Any("data", e.Data()))
			return nil
		}
		_ = c.Dispatch(ev)
		return nil
	})
}

// ForwardAll calls Forward for every name and stops at the first error.
func (c *Core) ForwardAll(names ...string) error {
	for _, name := range names {
		if err := c.Forward(name); err != nil {
			return err
		}
	}
	return nil
}

// SetGarbageCollector turns the periodic memory-reclamation hint on or off.
// A non-positive interval keeps the current one.
func (c *Core) SetGarbageCollector(enabled bool, interval time.Duration) {
	if interval > 0 {
		c.gcInterval = interval
	}
	if c.gcTimer != nil {
		c.gcTimer.Cancel()
		c.gcTimer = nil
	}
	if enabled {
		c.scheduleGC()
	}
}

// GarbageCollectorEnabled reports whether a hint is scheduled.
func (c *Core) GarbageCollectorEnabled() bool {
	return c.gcTimer != nil
}

func (c *Core) scheduleGC() {
	c.gcTimer = c.After(c.gcInterval, "garbageCollect", func() error {
		c.runtime.CollectGarbage()
		c.scheduleGC()
		return nil
	})
}

// Close unsubscribes from the runtime and stops the hint. Modules stay
// registered.
func (c *Core) Close() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, sub := range subs {
		c.RemoveEvent(sub)
	}
	c.SetGarbageCollector(false, 0)
}
