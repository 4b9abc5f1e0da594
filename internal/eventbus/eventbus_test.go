package eventbus

import (
	"testing"
	"time"
)

func TestPublishDeliversToAllLiveSubscribers(t *testing.T) {
	bus := New(nil)
	a := bus.Subscribe("s1")
	b := bus.Subscribe("s1")
	defer a.Cancel()
	defer b.Cancel()

	bus.Publish("s1", Event{Kind: "text_delta", SessionID: "s1", Payload: "hi"})

	for _, sub := range []*Subscription{a, b} {
		select {
		case ev := <-sub.Events():
			if ev.Kind != "text_delta" {
				t.Fatalf("got kind %q, want text_delta", ev.Kind)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestPublishIsSessionScoped(t *testing.T) {
	bus := New(nil)
	other := bus.Subscribe("other-session")
	defer other.Cancel()

	bus.Publish("s1", Event{Kind: "text_delta", SessionID: "s1"})

	select {
	case ev := <-other.Events():
		t.Fatalf("unexpected event delivered to unrelated session: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberGetsTerminalDroppedEventThenNothingElse(t *testing.T) {
	bus := New(nil)
	sub := bus.Subscribe("s1")
	defer sub.Cancel()

	// Fill the buffer without reading.
	for i := 0; i < DefaultBufferSize; i++ {
		bus.Publish("s1", Event{Kind: "text_delta", SessionID: "s1"})
	}
	// This publish overflows the buffer and should mark the subscriber dropped.
	bus.Publish("s1", Event{Kind: "text_delta", SessionID: "s1"})
	// Further publishes must not be delivered at all.
	bus.Publish("s1", Event{Kind: "text_delta", SessionID: "s1"})

	var sawDropped bool
	var countAfterDropped int
	for i := 0; i < DefaultBufferSize+5; i++ {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				i = DefaultBufferSize + 5
				continue
			}
			if ev.Kind == "dropped" {
				sawDropped = true
				continue
			}
			if sawDropped {
				countAfterDropped++
			}
		case <-time.After(50 * time.Millisecond):
			i = DefaultBufferSize + 5
		}
	}

	if !sawDropped {
		t.Fatal("expected exactly one terminal dropped event, saw none")
	}
	if countAfterDropped != 0 {
		t.Fatalf("expected no events after dropped marker, got %d", countAfterDropped)
	}
	if bus.DroppedTotal() != 1 {
		t.Fatalf("expected DroppedTotal()==1, got %d", bus.DroppedTotal())
	}
}

func TestDisposeSessionClosesAllSubscriptions(t *testing.T) {
	bus := New(nil)
	a := bus.Subscribe("s1")
	b := bus.Subscribe("s1")

	bus.DisposeSession("s1")

	for _, sub := range []*Subscription{a, b} {
		select {
		case _, ok := <-sub.Events():
			if ok {
				t.Fatal("expected closed channel, got a value")
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for channel close")
		}
	}
}
