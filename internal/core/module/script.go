package module

import (
	"time"

	"github.com/zeusync/resourcekit/internal/core/engine"
	"github.com/zeusync/resourcekit/internal/core/events/bus"
	"github.com/zeusync/resourcekit/internal/core/observability/log"
	"github.com/zeusync/resourcekit/internal/core/scheduler"
)

// Script forwards timer, event, export and logging registration to a Host
// under its own logger. Host objects and modules each own one.
type Script struct {
	host   Host
	logger log.Log
}

func NewScript(host Host, logger log.Log) *Script {
	if logger == nil {
		logger = host.Logger()
	}
	return &Script{host: host, logger: logger}
}

// AddEvent subscribes handler to the named host or network event.
func (s *Script) AddEvent(name string, handler bus.EventHandler) (bus.Subscription, error) {
	sub, err := s.host.Events().Subscribe(name, handler)
	if err != nil {
		s.logger.Error("Event "+name+" could not be added", log.Error(err))
		return nil, err
	}
	s.logger.Debug("Event " + name + " added!")
	return sub, nil
}

// RemoveEvent cancels sub. Removing an inactive or nil subscription is a no-op.
func (s *Script) RemoveEvent(sub bus.Subscription) {
	if sub == nil || !sub.IsActive() {
		return
	}
	_ = sub.Cancel()
	s.logger.Debug("Event " + sub.EventType() + " removed!")
}

// AddTick runs fn every scheduler slot, or at most once per interval when
// interval is positive.
func (s *Script) AddTick(name string, fn scheduler.Func, interval time.Duration) *scheduler.Tick {
	t := s.host.Scheduler().AddTick(name, fn, interval)
	s.logger.Debug("Added Tick " + name + "!")
	return t
}

// RemoveTick unregisters t. It reports false when t was not registered.
func (s *Script) RemoveTick(t *scheduler.Tick) bool {
	if !s.host.Scheduler().RemoveTick(t) {
		return false
	}
	s.logger.Debug("Removed Tick " + t.Name() + "!")
	return true
}

// After runs fn once, no earlier than d from now.
func (s *Script) After(d time.Duration, name string, fn scheduler.Func) *scheduler.Timer {
	return s.host.Scheduler().After(d, name, fn)
}

// Next runs fn on the next scheduler slot.
func (s *Script) Next(name string, fn scheduler.Func) {
	s.host.Scheduler().Post(name, fn)
}

func (s *Script) Exports() *engine.Exports {
	return s.host.Exports()
}

// Export returns the export table of another resource.
func (s *Script) Export(resource string) engine.ResourceExports {
	return s.host.Exports().Resource(resource)
}

// SetExport exposes fn as an export of the owning resource.
func (s *Script) SetExport(name string, fn engine.ExportFunc) error {
	if err := s.host.Exports().Set(s.host.Name(), name, fn); err != nil {
		s.logger.Error("Export "+name+" could not be set", log.Error(err))
		return err
	}
	s.logger.Debug("Export " + name + " set!")
	return nil
}

func (s *Script) Log(msg string, fields ...log.Field) {
	s.logger.Info(msg, fields...)
}

// LogError logs err as raised in where, e.g. a callback name.
func (s *Script) LogError(err error, where string) {
	if err == nil {
		return
	}
	s.logger.Error("in "+where, log.Error(err))
}

func (s *Script) Logger() log.Log {
	return s.logger
}
