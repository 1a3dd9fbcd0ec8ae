package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/mr1hm/go-health-surveillance/internal/models"
)

const subscriberBuffer = 100

// Filter decides whether a subscriber receives an event.
type Filter func(models.Event) bool

// ForDistrict keeps events for district. Events without a district, such as
// sync pass summaries, always pass.
func ForDistrict(district string) Filter {
	return func(e models.Event) bool {
		return e.District == "" || e.District == district
	}
}

// OfTypes keeps only the listed event types.
func OfTypes(types ...models.EventType) Filter {
	want := make(map[models.EventType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	return func(e models.Event) bool {
		return want[e.Type]
	}
}

type subscriber struct {
	ch      chan models.Event
	filters []Filter
}

func (s *subscriber) wants(e models.Event) bool {
	for _, f := range s.filters {
		if !f(e) {
			return false
		}
	}
	return true
}

// Broadcaster fans domain events out to subscribers. A nil Broadcaster
// drops everything published to it.
type Broadcaster struct {
	subscribers map[uint64]*subscriber
	nextID      atomic.Uint64
	dropped     atomic.Uint64
	mu          sync.RWMutex
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]*subscriber),
	}
}

// Subscribe registers a subscriber that receives the events passing every
// filter.
func (b *Broadcaster) Subscribe(filters ...Filter) (uint64, <-chan models.Event) {
	id := b.nextID.Add(1)
	s := &subscriber{
		ch:      make(chan models.Event, subscriberBuffer),
		filters: filters,
	}

	b.mu.Lock()
	b.subscribers[id] = s
	b.mu.Unlock()

	return id, s.ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if s, ok := b.subscribers[id]; ok {
		close(s.ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

// Publish never blocks; subscribers with a full buffer miss the event.
func (b *Broadcaster) Publish(e models.Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.subscribers {
		if !s.wants(e) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped is the number of deliveries skipped because a subscriber's buffer
// was full.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels, causing streams to exit gracefully
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, s := range b.subscribers {
		close(s.ch)
		delete(b.subscribers, id)
	}
}
