package node

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType identifies the kind of event published on the bus.
type EventType string

// Events the node's subsystems publish.
const (
	EventTxApplied     EventType = "tx.applied"
	EventBlockProposed EventType = "block.proposed"
	EventBlockFinal    EventType = "block.finalized"
	EventBlockRejected EventType = "block.rejected"
	EventMint          EventType = "bridge.mint"
	EventBurnRecorded  EventType = "bridge.burn"
	EventReorg         EventType = "l1.reorg"
	EventAnchor        EventType = "l1.anchor"
	EventFraudVerdict  EventType = "fraud.verdict"
	EventRateLimited   EventType = "ratelimit.cooldown"
)

// Event is a message published on the event bus.
type Event struct {
	Type      EventType
	Data      interface{}
	Timestamp time.Time
}

// Subscription delivers matching events on its channel until
// unsubscribed.
type Subscription struct {
	id     uint64
	types  map[EventType]struct{}
	ch     chan Event
	bus    *EventBus
	closed atomic.Bool
}

// Chan returns the read side of the subscription.
func (s *Subscription) Chan() <-chan Event {
	return s.ch
}

// Unsubscribe removes this subscription from the bus and closes the
// channel. Safe to call multiple times.
func (s *Subscription) Unsubscribe() {
	if s.bus != nil {
		s.bus.Unsubscribe(s)
	}
}

// EventBus is the publish/subscribe channel between node subsystems.
// Publishing never blocks: a subscriber that cannot keep up loses events
// rather than stalling consensus-critical paths.
type EventBus struct {
	mu         sync.RWMutex
	subs       map[uint64]*Subscription
	nextID     uint64
	bufferSize int
	closed     bool
}

// NewEventBus creates an EventBus. bufferSize is the per-subscription
// channel depth.
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &EventBus{
		subs:       make(map[uint64]*Subscription),
		bufferSize: bufferSize,
	}
}

// Subscribe creates a subscription matching any of the given types.
func (eb *EventBus) Subscribe(types ...EventType) *Subscription {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		sub := &Subscription{
			ch:    make(chan Event),
			types: make(map[EventType]struct{}),
		}
		sub.closed.Store(true)
		close(sub.ch)
		return sub
	}

	eb.nextID++
	typeSet := make(map[EventType]struct{}, len(types))
	for _, t := range types {
		typeSet[t] = struct{}{}
	}
	sub := &Subscription{
		id:    eb.nextID,
		types: typeSet,
		ch:    make(chan Event, eb.bufferSize),
		bus:   eb,
	}
	eb.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes the subscription and closes its channel. Safe to
// call multiple times or with nil.
func (eb *EventBus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	if !sub.closed.CompareAndSwap(false, true) {
		return
	}
	eb.mu.Lock()
	delete(eb.subs, sub.id)
	eb.mu.Unlock()
	close(sub.ch)
}

// Publish delivers the event to every matching subscriber with room in
// its channel and drops it for the rest.
func (eb *EventBus) Publish(eventType EventType, data interface{}) {
	event := Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if eb.closed {
		return
	}
	for _, sub := range eb.subs {
		if sub.closed.Load() {
			continue
		}
		if _, ok := sub.types[eventType]; ok {
			select {
			case sub.ch <- event:
			default:
			}
		}
	}
}

// SubscriberCount returns the number of live subscriptions for a type.
func (eb *EventBus) SubscriberCount(eventType EventType) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	count := 0
	for _, sub := range eb.subs {
		if sub.closed.Load() {
			continue
		}
		if _, ok := sub.types[eventType]; ok {
			count++
		}
	}
	return count
}

// Close shuts the bus down and closes every subscription channel.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	if eb.closed {
		eb.mu.Unlock()
		return
	}
	eb.closed = true
	toClose := make([]*Subscription, 0, len(eb.subs))
	for _, sub := range eb.subs {
		toClose = append(toClose, sub)
	}
	eb.subs = make(map[uint64]*Subscription)
	eb.mu.Unlock()

	for _, sub := range toClose {
		if sub.closed.CompareAndSwap(false, true) {
			close(sub.ch)
		}
	}
}
