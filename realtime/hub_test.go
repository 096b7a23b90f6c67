package realtime

import (
	"testing"
	"time"

	"civicstream-be/store"
)

func TestHubFansOutToAllSubscribers(t *testing.T) {
	h := NewHub()
	_, ch1, cancel1 := h.Subscribe(4)
	defer cancel1()
	_, ch2, cancel2 := h.Subscribe(4)
	defer cancel2()

	ev := store.Event{Collection: store.CollectionIssues, Kind: store.EventUpserted, ID: "abc"}
	h.Publish(ev)

	for i, ch := range []<-chan store.Event{ch1, ch2} {
		select {
		case got := <-ch:
			if got != ev {
				t.Errorf("subscriber %d got %+v, want %+v", i, got, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the event", i)
		}
	}
}

func TestHubCancelIsImmediateAndIdempotent(t *testing.T) {
	h := NewHub()
	_, ch, cancel := h.Subscribe(4)

	cancel()
	cancel() // second cancel must be a no-op

	if n := h.SubscriberCount(); n != 0 {
		t.Errorf("subscriber count = %d after cancel, want 0", n)
	}
	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}

	// Publishing after cancel must not panic or deliver.
	h.Publish(store.Event{Collection: store.CollectionIssues, Kind: store.EventDeleted, ID: "x"})
}

func TestHubDropsSubscriberThatStopsDraining(t *testing.T) {
	h := NewHub()
	_, slow, cancelSlow := h.Subscribe(1)
	defer cancelSlow()
	_, healthy, cancelHealthy := h.Subscribe(8)
	defer cancelHealthy()

	// Fill the slow subscriber's buffer, then overflow it.
	for i := 0; i < 3; i++ {
		h.Publish(store.Event{Collection: store.CollectionIssues, Kind: store.EventUpserted, ID: "n"})
	}

	// The healthy subscriber keeps receiving.
	received := 0
	for received < 3 {
		select {
		case <-healthy:
			received++
		case <-time.After(time.Second):
			t.Fatalf("healthy subscriber stalled after %d events", received)
		}
	}

	// The slow one was dropped: one buffered event, then a closed channel.
	if _, ok := <-slow; !ok {
		t.Fatal("expected the buffered event before close")
	}
	if _, ok := <-slow; ok {
		t.Error("slow subscriber channel should be closed after dropping")
	}
	if n := h.SubscriberCount(); n != 1 {
		t.Errorf("subscriber count = %d, want 1", n)
	}
}

func TestHubSubscribersSeeSameOrder(t *testing.T) {
	h := NewHub()
	_, ch1, cancel1 := h.Subscribe(8)
	defer cancel1()
	_, ch2, cancel2 := h.Subscribe(8)
	defer cancel2()

	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		h.Publish(store.Event{Collection: store.CollectionIssues, Kind: store.EventUpserted, ID: id})
	}

	for i, ch := range []<-chan store.Event{ch1, ch2} {
		for _, want := range ids {
			select {
			case got := <-ch:
				if got.ID != want {
					t.Errorf("subscriber %d saw %q, want %q", i, got.ID, want)
				}
			case <-time.After(time.Second):
				t.Fatalf("subscriber %d missed event %q", i, want)
			}
		}
	}
}
