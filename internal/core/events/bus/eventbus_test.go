package bus

import (
	"errors"
	"fmt"
	"testing"
)

func TestBasicPublishSubscribe(t *testing.T) {
	b := New()
	var got Event
	_, err := b.Subscribe("test.event", func(e Event) error {
		got = e
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err = b.Publish(NewEvent("test.event", "tester", 123)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got == nil {
		t.Fatal("handler not called")
	}
	if got.Source() != "tester" || got.Data().(int) != 123 {
		t.Fatalf("unexpected event: %#v", got)
	}
}

func TestDeliveryFollowsSubscriptionOrder(t *testing.T) {
	b := NewSharded(4)
	var order []int
	for i := 0; i < 10; i++ {
		i := i
		if _, err := b.Subscribe("ordered", func(Event) error {
			order = append(order, i)
			return nil
		}); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	}
	_ = b.Publish(NewEvent("ordered", "", nil))
	for i, v := range order {
		if v != i {
			t.Fatalf("out of order delivery: %v", order)
		}
	}
	if len(order) != 10 {
		t.Fatalf("expected 10 deliveries, got %d", len(order))
	}
}

func TestFailingHandlerDoesNotBlockOthers(t *testing.T) {
	b := New()
	handlerErr := errors.New("fail")
	reached := 0
	_, _ = b.Subscribe("x", func(Event) error { return handlerErr })
	_, _ = b.Subscribe("x", func(Event) error { panic("boom") })
	_, _ = b.Subscribe("x", func(Event) error { reached++; return nil })

	err := b.Publish(NewEvent("x", "src", nil))
	if !errors.Is(err, handlerErr) {
		t.Fatalf("expected joined handler error, got %v", err)
	}
	if reached != 1 {
		t.Fatalf("last handler not reached")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	b := New()
	count := 0
	sub, _ := b.Subscribe("e", func(Event) error { count++; return nil })
	keep, _ := b.Subscribe("e", func(Event) error { count += 10; return nil })

	if err := b.Unsubscribe(sub); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if err := sub.Cancel(); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if err := b.Unsubscribe(nil); err != nil {
		t.Fatalf("nil unsubscribe: %v", err)
	}
	if sub.IsActive() || !keep.IsActive() {
		t.Fatalf("unexpected activity flags")
	}
	if n := b.Subscribers("e"); n != 1 {
		t.Fatalf("expected 1 subscriber, got %d", n)
	}

	_ = b.Publish(NewEvent("e", "", nil))
	if count != 10 {
		t.Fatalf("cancelled handler still called: %d", count)
	}
}

func TestCancelDuringDelivery(t *testing.T) {
	b := New()
	var second Subscription
	called := false
	_, _ = b.Subscribe("e", func(Event) error { return second.Cancel() })
	second, _ = b.Subscribe("e", func(Event) error { called = true; return nil })

	_ = b.Publish(NewEvent("e", "", nil))
	if called {
		t.Fatal("handler cancelled mid-delivery must be skipped")
	}
}

func TestRejectsInvalidInput(t *testing.T) {
	b := New()
	if _, err := b.Subscribe("", func(Event) error { return nil }); !errors.Is(err, ErrEmptyEventType) {
		t.Fatalf("expected ErrEmptyEventType, got %v", err)
	}
	if _, err := b.Subscribe("a", nil); !errors.Is(err, ErrNilHandler) {
		t.Fatalf("expected ErrNilHandler, got %v", err)
	}
	if err := b.Publish(NewEvent("", "", nil)); !errors.Is(err, ErrEmptyEventType) {
		t.Fatalf("expected ErrEmptyEventType, got %v", err)
	}
}

func BenchmarkPublish(b *testing.B) {
	bus := New()
	for i := 0; i < 8; i++ {
		_, _ = bus.Subscribe(fmt.Sprintf("event.%d", i), func(Event) error { return nil })
	}
	ev := NewEvent("event.3", "bench", nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bus.Publish(ev)
	}
}
