// Package scheduler implements the cooperative, single-worker executor that
// every host object, module and simulated runtime runs on.
//
// A slot (frame) is executed by Step: due timers fire first, then tasks posted
// since the previous slot, then every registered tick in registration order.
// Callbacks run to completion on the calling goroutine; nothing in a slot
// runs concurrently with anything else. Post, After and AddTick are safe to
// call from other goroutines, which is how network input enters the worker.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/resourcekit/internal/core/observability/log"
	"github.com/zeusync/resourcekit/pkg/sequence"
)

var (
	ErrAlreadyRunning = errors.New("scheduler is already running")
	ErrPanic          = errors.New("callback panicked")
)

// Func is a scheduled callback. A returned error is logged and otherwise ignored.
type Func func() error

// DefaultFrameRate is the slot period used by Run when none is configured.
const DefaultFrameRate = 16 * time.Millisecond

type Scheduler struct {
	clock     Clock
	logger    log.Log
	frameRate time.Duration

	mu     sync.Mutex
	posted []task
	timers *sequence.PriorityQueue[*Timer]
	ticks  []*Tick
	seq    uint64
	frame  uint64

	running atomic.Bool
}

type task struct {
	name string
	fn   Func
}

type Option func(*Scheduler)

func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

func WithLogger(l log.Log) Option {
	return func(s *Scheduler) { s.logger = l }
}

func WithFrameRate(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.frameRate = d
		}
	}
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:     SystemClock{},
		frameRate: DefaultFrameRate,
		timers: sequence.NewPriorityQueue(func(a, b *Timer) bool {
			if a.due.Equal(b.due) {
				return a.seq < b.seq
			}
			return a.due.Before(b.due)
		}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Provide().Named("scheduler")
	}
	return s
}

// Now returns the scheduler clock's current time.
func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// Frame returns the number of slots executed so far.
func (s *Scheduler) Frame() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Post queues fn to run once on the next slot.
func (s *Scheduler) Post(name string, fn Func) {
	s.mu.Lock()
	s.posted = append(s.posted, task{name: name, fn: fn})
	s.mu.Unlock()
}

// After schedules fn to run once on the first slot at least d after now.
func (s *Scheduler) After(d time.Duration, name string, fn Func) *Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t := &Timer{
		id:    uuid.New(),
		name:  name,
		fn:    fn,
		due:   s.clock.Now().Add(d),
		seq:   s.seq,
		owner: s,
	}
	t.item = s.timers.Enqueue(t)
	return t
}

// AddTick registers fn to run every slot, or at most once per interval when
// interval is positive. The first run happens on the next slot.
func (s *Scheduler) AddTick(name string, fn Func, interval time.Duration) *Tick {
	t := &Tick{
		id:       uuid.New(),
		name:     name,
		fn:       fn,
		interval: interval,
	}
	s.mu.Lock()
	s.ticks = append(s.ticks, t)
	s.mu.Unlock()
	return t
}

// RemoveTick unregisters t. Removing a tick that is not registered is a no-op
// and reports false.
func (s *Scheduler) RemoveTick(t *Tick) bool {
	if t == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, registered := range s.ticks {
		if registered == t {
			s.ticks = append(s.ticks[:i:i], s.ticks[i+1:]...)
			t.removed.Store(true)
			return true
		}
	}
	return false
}

// HasTick reports whether t is currently registered.
func (s *Scheduler) HasTick(t *Tick) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, registered := range s.ticks {
		if registered == t {
			return true
		}
	}
	return false
}

// Ticks returns the number of registered ticks.
func (s *Scheduler) Ticks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ticks)
}

// Pending returns the number of posted tasks and armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posted) + s.timers.Len()
}

// Step executes one slot and returns the number of callbacks that ran.
func (s *Scheduler) Step() int {
	s.mu.Lock()
	s.frame++
	now := s.clock.Now()

	var due []*Timer
	for {
		next, ok := s.timers.Peek()
		if !ok || next.due.After(now) {
			break
		}
		_, _ = s.timers.Dequeue()
		due = append(due, next)
	}

	posted := s.posted
	s.posted = nil

	ticks := make([]*Tick, len(s.ticks))
	copy(ticks, s.ticks)
	s.mu.Unlock()

	ran := 0
	for _, t := range due {
		_ = s.invoke("timer", t.name, t.fn)
		ran++
	}

	for _, p := range posted {
		_ = s.invoke("task", p.name, p.fn)
		ran++
	}

	for _, t := range ticks {
		if t.removed.Load() || !t.due(now) {
			continue
		}
		_ = s.invoke("tick", t.name, t.fn)
		ran++
	}

	return ran
}

// Run drives Step at the configured frame rate until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	ticker := time.NewTicker(s.frameRate)
	defer ticker.Stop()

	s.logger.Debug("Scheduler running", log.Duration("frame_rate", s.frameRate))

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Scheduler stopped", log.Uint64("frames", s.Frame()))
			return nil
		case <-ticker.C:
			s.Step()
		}
	}
}

// invoke runs fn, turning a panic into an error. Failures are logged and
// never stop the slot.
func (s *Scheduler) invoke(kind, name string, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrPanic, r, debug.Stack())
		}
		if err != nil {
			s.logger.Error("Scheduled callback failed",
				log.String("kind", kind),
				log.String("name", name),
				log.Error(err))
		}
	}()
	return fn()
}
