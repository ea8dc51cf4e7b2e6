package services

import (
	"sync"

	"github.com/rs/zerolog/log"

	"tripsync-backend/internal/models"
)

// subscriberBuffer is the per-subscriber event buffer. A subscriber
// whose buffer fills up is evicted rather than blocking the publisher.
const subscriberBuffer = 16

// Subscriber is one live push channel for a trip. Events arrive on C;
// the channel is closed on Unsubscribe or eviction.
type Subscriber struct {
	TripID string
	C      chan models.Event
}

// Broker maintains, per trip id, the set of live subscribers and fans
// typed events out to all of them. Delivery is best-effort and
// at-most-once with no replay: a subscriber connected after an event
// was published never receives it, and clients reconcile gaps by
// re-fetching authoritative state. One Broker is created at startup and
// closed at shutdown; nothing else mutates it.
type Broker struct {
	mu     sync.RWMutex
	trips  map[string]map[*Subscriber]struct{}
	closed bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{trips: make(map[string]map[*Subscriber]struct{})}
}

// Subscribe registers a new push channel for a trip.
func (b *Broker) Subscribe(tripID string) *Subscriber {
	sub := &Subscriber{
		TripID: tripID,
		C:      make(chan models.Event, subscriberBuffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.C)
		return sub
	}
	subs, ok := b.trips[tripID]
	if !ok {
		subs = make(map[*Subscriber]struct{})
		b.trips[tripID] = subs
	}
	subs[sub] = struct{}{}

	log.Debug().Str("trip_id", tripID).Int("subscribers", len(subs)).Msg("Subscriber registered")
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Safe to call
// for a subscriber that was already evicted.
func (b *Broker) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

func (b *Broker) removeLocked(sub *Subscriber) {
	subs, ok := b.trips[sub.TripID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.C)
	if len(subs) == 0 {
		delete(b.trips, sub.TripID)
	}
}

// Publish fans an event out to every subscriber of a trip. Publishing
// to a trip with no subscribers is a silent no-op. A subscriber that
// cannot keep up (full buffer) is evicted without affecting the others
// or the publisher.
func (b *Broker) Publish(tripID string, event models.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.trips[tripID]
	if len(subs) == 0 {
		return
	}

	var evicted []*Subscriber
	for sub := range subs {
		select {
		case sub.C <- event:
		default:
			evicted = append(evicted, sub)
		}
	}
	for _, sub := range evicted {
		b.removeLocked(sub)
		log.Warn().Str("trip_id", tripID).Str("event", event.Type).Msg("Slow subscriber evicted")
	}
}

// SubscriberCount returns the number of live subscribers for a trip.
func (b *Broker) SubscriberCount(tripID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.trips[tripID])
}

// Close tears down all registries, closing every subscriber channel.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, subs := range b.trips {
		for sub := range subs {
			close(sub.C)
		}
	}
	b.trips = make(map[string]map[*Subscriber]struct{})
	b.closed = true
}
