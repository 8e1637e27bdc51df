package bus

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

var (
	ErrEmptyEventType = errors.New("event type is empty")
	ErrNilHandler     = errors.New("event handler is nil")
)

const defaultShardCount = 16

// simpleEvent is a basic implementation of Event.
type simpleEvent struct {
	typeStr string
	source  string
	ts      time.Time
	data    any
}

func (e simpleEvent) Type() string         { return e.typeStr }
func (e simpleEvent) Source() string       { return e.source }
func (e simpleEvent) Timestamp() time.Time { return e.ts }
func (e simpleEvent) Data() any            { return e.data }

// NewEvent creates a simple Event implementation.
func NewEvent(typ, src string, data any) Event {
	return simpleEvent{typeStr: typ, source: src, ts: time.Now(), data: data}
}

// subscription implements Subscription interface.
type subscription struct {
	id        string
	eventType string
	handler   EventHandler
	active    atomic.Bool
	cancel    func()
}

func (s *subscription) ID() string        { return s.id }
func (s *subscription) EventType() string { return s.eventType }
func (s *subscription) IsActive() bool    { return s.active.Load() }
func (s *subscription) Cancel() error {
	if s.active.Swap(false) && s.cancel != nil {
		s.cancel()
	}
	return nil
}

// shard holds the handlers of every event type hashing to it.
type shard struct {
	mu       sync.RWMutex
	handlers map[string][]*subscription
}

// inMemoryBus shards handler lists by event type so that subscriptions made
// from transport goroutines do not contend with unrelated deliveries.
type inMemoryBus struct {
	shards []*shard
}

// New creates a new EventBus instance.
func New() EventBus {
	return NewSharded(defaultShardCount)
}

// NewSharded creates an EventBus with n shards.
func NewSharded(n int) EventBus {
	if n <= 0 {
		n = defaultShardCount
	}
	b := &inMemoryBus{shards: make([]*shard, n)}
	for i := range b.shards {
		b.shards[i] = &shard{handlers: make(map[string][]*subscription)}
	}
	return b
}

func (b *inMemoryBus) shardFor(eventType string) *shard {
	return b.shards[xxhash.Sum64String(eventType)%uint64(len(b.shards))]
}

func (b *inMemoryBus) Subscribe(eventType string, handler EventHandler) (Subscription, error) {
	if eventType == "" {
		return nil, ErrEmptyEventType
	}
	if handler == nil {
		return nil, ErrNilHandler
	}

	sh := b.shardFor(eventType)
	s := &subscription{id: uuid.NewString(), eventType: eventType, handler: handler}
	s.active.Store(true)
	s.cancel = func() {
		sh.mu.Lock()
		defer sh.mu.Unlock()
		list := sh.handlers[eventType]
		for i, candidate := range list {
			if candidate == s {
				list = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(list) == 0 {
			delete(sh.handlers, eventType)
		} else {
			sh.handlers[eventType] = list
		}
	}

	sh.mu.Lock()
	sh.handlers[eventType] = append(sh.handlers[eventType], s)
	sh.mu.Unlock()
	return s, nil
}

func (b *inMemoryBus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return nil
	}
	return sub.Cancel()
}

func (b *inMemoryBus) Subscribers(eventType string) int {
	sh := b.shardFor(eventType)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.handlers[eventType])
}

func (b *inMemoryBus) Publish(event Event) error {
	if event == nil || event.Type() == "" {
		return ErrEmptyEventType
	}

	etype := event.Type()
	sh := b.shardFor(etype)
	sh.mu.RLock()
	subs := make([]*subscription, len(sh.handlers[etype]))
	copy(subs, sh.handlers[etype])
	sh.mu.RUnlock()

	var all error
	for _, s := range subs {
		if !s.IsActive() {
			continue
		}
		if err := deliver(s, event); err != nil {
			all = errors.Join(all, err)
		}
	}
	return all
}

func deliver(s *subscription, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler for %q panicked: %v", s.eventType, r)
		}
	}()
	return s.handler(event)
}
