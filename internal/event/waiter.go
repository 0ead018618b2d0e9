package event

// Waiter is a coroutine suspended until the next Fire of an event. A waiter
// is consumed by the first Fire that reaches it.
type Waiter struct {
	event        *Event
	co           Coroutine
	closeOnError bool

	// resuming is set while this waiter's coroutine is being resumed.
	resuming bool

	prev, next *Waiter
	linked     bool
}

// Register links co as a waiter at the head of the event's waiter list.
// Host runtimes use it to park their own coroutines; Go tasks use Wait.
func (e *Event) Register(co Coroutine, closeOnError bool) (*Waiter, error) {
	if !e.valid() {
		return nil, ErrInvalidState
	}
	if co == nil {
		return nil, ErrNilCoroutine
	}

	w := &Waiter{
		event:        e,
		co:           co,
		closeOnError: closeOnError,
		linked:       true,
	}
	w.next = e.waiters
	if e.waiters != nil {
		e.waiters.prev = w
	}
	e.waiters = w
	return w, nil
}

// Event returns the event the waiter is registered with.
func (w *Waiter) Event() *Event {
	return w.event
}

// CloseOnError reports whether the coroutine is closed when its resume fails.
func (w *Waiter) CloseOnError() bool {
	return w.closeOnError
}

// Pending reports whether the waiter has not been processed by a Fire yet.
func (w *Waiter) Pending() bool {
	return w.linked
}

// unlink removes w from its event's waiter list. Safe to call twice.
func (w *Waiter) unlink() {
	if !w.linked {
		return
	}
	w.linked = false
	if w.prev != nil {
		w.prev.next = w.next
	} else {
		w.event.waiters = w.next
	}
	if w.next != nil {
		w.next.prev = w.prev
	}
	w.prev = nil
	w.next = nil
}
