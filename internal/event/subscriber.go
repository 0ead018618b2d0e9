package event

// Subscriber is a handler attached to an Event. It stays linked into the
// event's subscriber list while connected.
type Subscriber struct {
	event   *Event
	handler Handler

	// origin is the call stack captured when the subscriber was created.
	origin string

	prev, next *Subscriber

	connected bool

	// pendingDisconnect defers an unlink until the owning dispatch frame
	// finishes invoking the handler. Only meaningful while dispatching.
	pendingDisconnect bool

	// dispatching is set by the outermost Fire frame invoking the handler.
	dispatching bool
}

// Subscribe attaches h to the event. The newest subscriber is invoked first.
//
// The subscribe site is recorded for diagnostics. Handlers created by a host
// runtime may report their own site by implementing Origin() string.
func (e *Event) Subscribe(h Handler) (*Subscriber, error) {
	if !e.valid() {
		return nil, ErrInvalidState
	}
	if h == nil {
		return nil, ErrNilHandler
	}

	s := &Subscriber{
		event:     e,
		handler:   h,
		connected: true,
	}
	if o, ok := h.(interface{ Origin() string }); ok {
		s.origin = o.Origin()
	} else {
		s.origin = captureTrace(1)
	}
	e.pushSubscriber(s)
	return s, nil
}

// SubscribeFunc is a convenience method for subscribing a function.
func (e *Event) SubscribeFunc(fn HandlerFunc) (*Subscriber, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	return e.Subscribe(fn)
}

// Event returns the event the subscriber belongs to.
func (s *Subscriber) Event() *Event {
	if s == nil {
		return nil
	}
	return s.event
}

// Origin returns the call stack captured when the subscriber was created.
func (s *Subscriber) Origin() string {
	if s == nil {
		return ""
	}
	return s.origin
}

// IsActive reports whether the subscriber will be invoked by the next Fire.
func (s *Subscriber) IsActive() bool {
	return s != nil && s.connected && !s.pendingDisconnect
}

// Disconnect detaches the subscriber. If its handler is executing, the
// unlink is deferred until the handler returns; the subscriber is not
// invoked again meanwhile. Disconnecting a detached subscriber is a no-op.
func (s *Subscriber) Disconnect() error {
	if !s.live() {
		return ErrInvalidState
	}
	if !s.connected {
		return nil
	}
	if s.dispatching {
		s.pendingDisconnect = true
		return nil
	}
	s.unlink()
	return nil
}

// Reconnect reattaches a detached subscriber at the head of its event's
// list, or cancels a pending disconnect without moving the subscriber.
func (s *Subscriber) Reconnect() error {
	if !s.live() {
		return ErrInvalidState
	}
	switch {
	case !s.connected:
		s.connected = true
		s.event.pushSubscriber(s)
	case s.pendingDisconnect:
		s.pendingDisconnect = false
	}
	return nil
}

// live reports whether s was created by Subscribe.
func (s *Subscriber) live() bool {
	return s != nil && s.event != nil && s.handler != nil
}

// pushSubscriber inserts s at the head of the subscriber list.
func (e *Event) pushSubscriber(s *Subscriber) {
	s.prev = nil
	s.next = e.subscribers
	if e.subscribers != nil {
		e.subscribers.prev = s
	}
	e.subscribers = s
}

// unlink removes s from its event's list and marks it disconnected.
func (s *Subscriber) unlink() {
	s.connected = false
	if s.prev != nil {
		s.prev.next = s.next
	} else {
		s.event.subscribers = s.next
	}
	if s.next != nil {
		s.next.prev = s.prev
	}
	s.prev = nil
	s.next = nil
}
