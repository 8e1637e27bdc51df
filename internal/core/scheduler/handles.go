package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/resourcekit/pkg/sequence"
)

// Tick is a repeating callback registered with AddTick.
type Tick struct {
	id       uuid.UUID
	name     string
	fn       Func
	interval time.Duration

	// next is only touched by the worker running Step.
	next    time.Time
	removed atomic.Bool
}

func (t *Tick) ID() uuid.UUID {
	return t.id
}

func (t *Tick) Name() string {
	return t.name
}

func (t *Tick) Interval() time.Duration {
	return t.interval
}

func (t *Tick) due(now time.Time) bool {
	if t.interval <= 0 {
		return true
	}
	if now.Before(t.next) {
		return false
	}
	t.next = now.Add(t.interval)
	return true
}

// Timer is a one-shot callback registered with After.
type Timer struct {
	id    uuid.UUID
	name  string
	fn    Func
	due   time.Time
	seq   uint64
	item  *sequence.Item[*Timer]
	owner *Scheduler
}

func (t *Timer) ID() uuid.UUID {
	return t.id
}

func (t *Timer) Due() time.Time {
	return t.due
}

// Cancel disarms the timer. It reports false when the timer already fired or
// was cancelled before.
func (t *Timer) Cancel() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	return t.owner.timers.Remove(t.item)
}

// Clock is the time source of a Scheduler.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// ManualClock only moves when told to. Tests inject it to drive slots
// deterministically.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
