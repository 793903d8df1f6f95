package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEmitReachesAllSubscribers(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	got := make(chan string, 2)
	handler := func(name string) HandlerFunc {
		return func(_ context.Context, ev Event) error {
			got <- name + ":" + ev.Source
			return nil
		}
	}
	bus.Subscribe(EventChatMessage, "first", handler("first"))
	bus.Subscribe(EventChatMessage, "second", handler("second"))

	bus.Emit(context.Background(), Event{Type: EventChatMessage, Source: "test"})

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case s := <-got:
			seen[s] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for handlers")
		}
	}
	if !seen["first:test"] || !seen["second:test"] {
		t.Errorf("handlers seen = %v, want both", seen)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	calls := 0
	bus.Subscribe(EventShutdown, "counter", func(_ context.Context, _ Event) error {
		calls++
		return nil
	})
	if n := bus.HandlerCount(EventShutdown); n != 1 {
		t.Fatalf("handler count = %d, want 1", n)
	}

	if err := bus.EmitSync(context.Background(), Event{Type: EventShutdown}); err != nil {
		t.Fatalf("emit: %v", err)
	}

	bus.Unsubscribe(EventShutdown, "counter")
	if n := bus.HandlerCount(EventShutdown); n != 0 {
		t.Fatalf("handler count after unsubscribe = %d, want 0", n)
	}

	if err := bus.EmitSync(context.Background(), Event{Type: EventShutdown}); err != nil {
		t.Fatalf("emit after unsubscribe: %v", err)
	}
	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
}

func TestEmitSyncReturnsFirstHandlerError(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	boom := errors.New("boom")
	bus.Subscribe(EventConfigChanged, "ok", func(_ context.Context, _ Event) error { return nil })
	bus.Subscribe(EventConfigChanged, "failing", func(_ context.Context, _ Event) error { return boom })

	if err := bus.EmitSync(context.Background(), Event{Type: EventConfigChanged}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestStopClosesStopChAndDropsEmits(t *testing.T) {
	bus := NewEventBus()

	delivered := make(chan struct{}, 1)
	bus.Subscribe(EventShutdown, "late", func(_ context.Context, _ Event) error {
		delivered <- struct{}{}
		return nil
	})

	bus.Stop()

	select {
	case <-bus.StopCh():
	default:
		t.Fatal("StopCh not closed after Stop")
	}

	bus.Emit(context.Background(), Event{Type: EventShutdown})
	select {
	case <-delivered:
		t.Fatal("stopped bus must not deliver events")
	case <-time.After(100 * time.Millisecond):
	}
}
