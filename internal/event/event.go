package event

import (
	"github.com/google/uuid"
)

// Event is the identity broadcasts are performed against. It owns a list of
// subscribers and a list of waiters, both ordered most recent first.
//
// An Event is not safe for concurrent use. All operations on an event and on
// its subscribers must happen on one logical thread of control; tasks
// resumed by Fire count as that thread because they run only while Fire
// waits for them.
type Event struct {
	id     string
	config eventConfig

	// firing is set by the outermost Fire frame and cleared by it.
	firing bool

	subscribers *Subscriber
	waiters     *Waiter

	stats Stats
}

// NewEvent creates an event with no subscribers or waiters.
func NewEvent(opts ...Option) *Event {
	config := defaultEventConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return &Event{
		id:     uuid.NewString(),
		config: config,
	}
}

// ID returns the event's unique identifier.
func (e *Event) ID() string {
	return e.id
}

// Name returns the event's diagnostic name, falling back to its ID.
func (e *Event) Name() string {
	if e.config.name != "" {
		return e.config.name
	}
	return e.id
}

// String returns the event's type name and identity.
func (e *Event) String() string {
	return "Event: " + e.Name()
}

// IsFiring reports whether a Fire call is currently dispatching this event.
func (e *Event) IsFiring() bool {
	return e.firing
}

// SubscriberCount returns the number of linked subscribers, including ones
// whose disconnect is pending.
func (e *Event) SubscriberCount() int {
	n := 0
	for s := e.subscribers; s != nil; s = s.next {
		n++
	}
	return n
}

// WaiterCount returns the number of registered waiters.
func (e *Event) WaiterCount() int {
	n := 0
	for w := e.waiters; w != nil; w = w.next {
		n++
	}
	return n
}

// Stats returns cumulative statistics for the event.
func (e *Event) Stats() Stats {
	return e.stats
}

// valid reports whether e was created by NewEvent.
func (e *Event) valid() bool {
	return e != nil && e.id != ""
}
