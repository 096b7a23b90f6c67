package realtime

import (
	"log"
	"sync"

	"civicstream-be/store"

	"github.com/google/uuid"
)

// DefaultBuffer is the per-subscriber event channel capacity. A subscriber
// that falls this far behind is dropped and expected to resubscribe.
const DefaultBuffer = 16

// Hub fans committed store change events out to every active subscriber.
// Each subscriber gets its own buffered channel so one slow consumer never
// blocks delivery to the others.
type Hub struct {
	mu   sync.Mutex
	subs map[string]chan store.Event
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]chan store.Event)}
}

// Subscribe registers a new subscriber and returns its id, event channel and
// a cancel function. Cancel is idempotent and immediately stops delivery.
func (h *Hub) Subscribe(buffer int) (string, <-chan store.Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	id := uuid.NewString()
	ch := make(chan store.Event, buffer)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	cancel := func() { h.remove(id) }
	return id, ch, cancel
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Publish delivers ev to every subscriber. Subscribers whose buffers are
// full are dropped; their closed channel tells the push loop to end, and the
// client reconnects with a fresh subscription.
func (h *Hub) Publish(ev store.Event) {
	h.mu.Lock()
	var stale []string
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		ch := h.subs[id]
		delete(h.subs, id)
		close(ch)
	}
	h.mu.Unlock()

	for range stale {
		log.Println("realtime: dropped subscriber that stopped draining events")
	}
}

// SubscriberCount reports the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
