package event

import (
	"runtime/debug"
)

// Fire delivers args to every active subscriber, newest first, and then
// resumes every registered waiter, newest first, with the same args.
//
// Handler and waiter failures are reported to the event's Reporter and never
// stop the broadcast. Fire only fails when args exceed the event's capacity,
// in which case nothing is dispatched.
//
// Fire may be called from inside a handler or a resumed task, including on
// the event being fired.
func (e *Event) Fire(args ...any) error {
	return e.fire(nil, args)
}

// FireTraced is Fire for hosts whose callers are not Go code. site renders
// the caller's stack and becomes the FirePoint of waiter failure records.
// It is only called if a waiter fails.
func (e *Event) FireTraced(site func() string, args ...any) error {
	return e.fire(site, args)
}

func (e *Event) fire(site func() string, args []any) error {
	if !e.valid() {
		return ErrInvalidState
	}
	if len(args) > e.config.maxArgs {
		e.stats.Rejected++
		return &CapacityError{EventID: e.id, Args: len(args), Limit: e.config.maxArgs}
	}

	owner := !e.firing
	if owner {
		e.firing = true
	}

	summary := FireSummary{Args: len(args), Nested: !owner}
	e.dispatchSubscribers(args, &summary)
	e.dispatchWaiters(args, site, &summary)

	if owner {
		e.firing = false
	}

	e.record(summary)
	return nil
}

// dispatchSubscribers runs the subscriber pass. The next link is read after
// each handler returns so changes made by the handler are honored.
func (e *Event) dispatchSubscribers(args []any, summary *FireSummary) {
	s := e.subscribers
	for s != nil {
		if !s.IsActive() {
			s = s.next
			continue
		}

		// Only the outermost frame invoking s finalizes it.
		own := !s.dispatching
		if own {
			s.dispatching = true
		}

		summary.SubscribersInvoked++
		if err := invoke(s.handler, args); err != nil {
			summary.SubscriberFailures++
			tb := tracebackOf(err)
			if tb == "" {
				tb = captureTrace(3)
			}
			e.report(Record{
				Kind:      KindSubscriberError,
				Err:       &SubscriberError{EventID: e.id, Err: err},
				Traceback: tb,
				Origin:    s.origin,
			})
		}

		next := s.next
		if own {
			s.dispatching = false
			if s.pendingDisconnect {
				s.pendingDisconnect = false
				s.unlink()
			}
		}
		s = next
	}
}

// dispatchWaiters runs the waiter pass. Every waiter reached is unlinked
// exactly once, whatever the outcome of its resume.
func (e *Event) dispatchWaiters(args []any, site func() string, summary *FireSummary) {
	var firePoint string

	w := e.waiters
	for w != nil {
		// An enclosing frame is resuming w and owns the rest of the list.
		if w.resuming {
			break
		}
		w.resuming = true

		if !w.co.Accepts(len(args)) {
			summary.WaitersSkipped++
			e.report(Record{
				Kind: KindWaiterCapacity,
				Err:  &CapacityError{EventID: e.id, Args: len(args), Limit: capacityOf(w.co)},
			})
		} else {
			summary.WaitersResumed++
			if err := resume(w.co, args); err != nil {
				summary.WaiterFailures++
				if firePoint == "" {
					if site != nil {
						firePoint = site()
					} else {
						firePoint = captureTrace(3)
					}
				}
				rec := Record{
					Kind:      KindWaiterResumeError,
					Err:       &ResumeError{EventID: e.id, Err: err},
					Traceback: tracebackOf(err),
					FirePoint: firePoint,
				}
				if w.closeOnError {
					rec.Closed = true
					if cerr := closeCoroutine(w.co); cerr != nil {
						rec.CloseErr = &TerminationError{EventID: e.id, Err: cerr}
					}
				}
				e.report(rec)
			}
		}

		w.resuming = false
		next := w.next
		w.unlink()
		w = next
	}
}

// report stamps r with the event identity and hands it to the reporter.
func (e *Event) report(r Record) {
	r.EventID = e.id
	r.EventName = e.Name()
	e.config.reporter.Report(r)
}

// record folds a finished frame into the stats and notifies the observer.
func (e *Event) record(s FireSummary) {
	e.stats.Fires++
	e.stats.HandlersExecuted += uint64(s.SubscribersInvoked)
	e.stats.HandlerErrors += uint64(s.SubscriberFailures)
	e.stats.WaitersResumed += uint64(s.WaitersResumed)
	e.stats.WaiterErrors += uint64(s.WaiterFailures)
	e.stats.WaitersSkipped += uint64(s.WaitersSkipped)

	if e.config.observer != nil {
		e.config.observer.ObserveFire(e, s)
	}
}

// invoke calls h, converting a panic into a *PanicError.
func invoke(h Handler, args []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	return h.Handle(args...)
}

// resume continues co, discarding the values it produces.
func resume(co Coroutine, args []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	_, err = co.Resume(args...)
	return err
}

// closeCoroutine forcibly terminates co.
func closeCoroutine(co Coroutine) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	return co.Close()
}

// capacityOf returns the argument limit of co, or -1 when it is unknown.
func capacityOf(co Coroutine) int {
	if c, ok := co.(interface{ MaxArgs() int }); ok {
		return c.MaxArgs()
	}
	return -1
}
