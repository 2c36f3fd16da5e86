package engine

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/germanamz/lamplighter/pkg/agent"
)

// EventKind identifies the type of engine event.
type EventKind string

const (
	EventTurnStart     EventKind = "turn_start"
	EventToolCallStart EventKind = EventKind(agent.EventToolCallStart)
	EventToolCallEnd   EventKind = EventKind(agent.EventToolCallEnd)
	EventMessageAdded  EventKind = "message_added"
	EventError         EventKind = "error"
	EventTurnEnd       EventKind = "turn_end"
)

// Event is an immutable notification of engine activity. Data carries the
// user text for EventTurnStart, an agent.ToolCallEventData for tool events,
// the reply message.Message for EventMessageAdded and the error for
// EventError.
type Event struct {
	Kind      EventKind
	SessionID string
	Agent     string
	Timestamp time.Time
	Data      any
}

// Filter selects the events a subscription receives.
type Filter func(Event) bool

// ForSession keeps the events of one session.
func ForSession(id string) Filter {
	return func(e Event) bool { return e.SessionID == id }
}

// OfKind keeps events of the given kinds.
func OfKind(kinds ...EventKind) Filter {
	return func(e Event) bool { return slices.Contains(kinds, e.Kind) }
}

// Subscription receives events from an EventBus.
type Subscription struct {
	C <-chan Event

	ch      chan Event
	filters []Filter
	dropped atomic.Int64
}

// Dropped reports how many matching events were discarded because the
// buffer was full.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

func (s *Subscription) wants(e Event) bool {
	for _, f := range s.filters {
		if !f(e) {
			return false
		}
	}
	return true
}

// EventBus fans out events to subscribers. It is safe for concurrent use.
// Publishing never blocks: session turns must not stall on a slow observer.
type EventBus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewEventBus creates an EventBus ready for use.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscription buffering up to bufSize events. Only
// events accepted by every filter are delivered. The caller reads from C
// and must call Unsubscribe when done.
func (b *EventBus) Subscribe(bufSize int, filters ...Filter) *Subscription {
	ch := make(chan Event, bufSize)
	sub := &Subscription{C: ch, ch: ch, filters: filters}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes the subscription and closes its channel. Calling it
// twice is harmless.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Publish delivers e to every interested subscriber with room in its buffer
// and counts a drop for the others.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if !sub.wants(e) {
			continue
		}

		select {
		case sub.ch <- e:
		default:
			sub.dropped.Add(1)
		}
	}
}
