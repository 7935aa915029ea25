package events

import (
	"sync"

	"github.com/google/uuid"

	"github.com/slurmview/slurmview/pkg/logging"
)

// historyCapacity bounds the event history ring; the oldest events are
// dropped once the bus has seen more than this many.
const historyCapacity = 1000

// Callback handles a delivered event. Callbacks run synchronously on the
// publisher's goroutine; a callback that touches state shared with other
// goroutines must do its own locking.
type Callback func(Event)

type subscription struct {
	id           string
	subscriberID string
	eventType    Type
	callback     Callback
}

// Bus is a thread-safe publish/subscribe hub with bounded history.
//
// The internal mutex guards only the subscriber list and the history ring;
// it is never held while callbacks run, so a slow or re-entrant subscriber
// cannot deadlock the bus.
type Bus struct {
	mu            sync.Mutex
	subscriptions []subscription
	history       []Event
	disabled      bool
	log           *logging.Logger
}

// NewBus creates an event bus. The logger may be nil.
func NewBus(log *logging.Logger) *Bus {
	if log == nil {
		log = logging.NewLogger(logging.INFO, false)
	}
	return &Bus{log: log.WithComponent("eventbus")}
}

// Publish appends the event to the history ring and delivers it
// synchronously to every current subscriber of its type, in subscription
// order. A panicking subscriber is recovered and logged; delivery to the
// remaining subscribers continues. On a disabled bus Publish is a no-op.
func (b *Bus) Publish(t Type, payload map[string]interface{}, source string) Event {
	ev := newEvent(t, payload, source)

	b.mu.Lock()
	if b.disabled {
		b.mu.Unlock()
		return ev
	}
	b.history = append(b.history, ev)
	if len(b.history) > historyCapacity {
		b.history = b.history[len(b.history)-historyCapacity:]
	}
	// Snapshot matching subscribers so callbacks run without the lock.
	var targets []subscription
	for _, sub := range b.subscriptions {
		if sub.eventType == t {
			targets = append(targets, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range targets {
		b.deliver(sub, ev)
	}
	return ev
}

func (b *Bus) deliver(sub subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("subscriber panicked during delivery", map[string]interface{}{
				"subscriber": sub.subscriberID,
				"event_type": string(ev.Type),
				"panic":      r,
			})
		}
	}()
	sub.callback(ev)
}

// Subscribe registers a callback for one event type and returns the
// subscription id used for Unsubscribe.
func (b *Bus) Subscribe(t Type, subscriberID string, cb Callback) string {
	sub := subscription{
		id:           uuid.NewString(),
		subscriberID: subscriberID,
		eventType:    t,
		callback:     cb,
	}
	b.mu.Lock()
	b.subscriptions = append(b.subscriptions, sub)
	b.mu.Unlock()
	return sub.id
}

// Unsubscribe removes one subscription. It returns false when the id is
// unknown or already removed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subscriptions {
		if sub.id == id {
			b.subscriptions = append(b.subscriptions[:i], b.subscriptions[i+1:]...)
			return true
		}
	}
	return false
}

// UnsubscribeAll removes every subscription registered under subscriberID
// and returns how many were removed.
func (b *Bus) UnsubscribeAll(subscriberID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.subscriptions[:0]
	removed := 0
	for _, sub := range b.subscriptions {
		if sub.subscriberID == subscriberID {
			removed++
			continue
		}
		kept = append(kept, sub)
	}
	b.subscriptions = kept
	return removed
}

// SubscriberCount returns how many subscriptions exist for an event type.
func (b *Bus) SubscriberCount(t Type) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, sub := range b.subscriptions {
		if sub.eventType == t {
			n++
		}
	}
	return n
}

// History returns a copy of the retained events, optionally filtered by
// type. Pass limit <= 0 for all retained events.
func (b *Bus) History(t Type, limit int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Event
	for _, ev := range b.history {
		if t == "" || ev.Type == t {
			out = append(out, ev)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// ClearHistory drops all retained events.
func (b *Bus) ClearHistory() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = nil
}

// SetDisabled toggles the bus. A disabled bus accepts Publish calls and
// drops them; subscriptions survive until re-enabled.
func (b *Bus) SetDisabled(disabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disabled = disabled
}
