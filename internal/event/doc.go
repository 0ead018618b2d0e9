// Package event provides single-threaded broadcast events with callback
// subscribers and one-shot waiters.
//
// An Event owns two intrusive doubly-linked lists:
//
//	Event
//	  ├── subscribers: S3 ⇄ S2 ⇄ S1   (newest first, persistent)
//	  └── waiters:     W2 ⇄ W1        (newest first, consumed by Fire)
//
// # Subscribers
//
// Subscribe attaches a Handler. Disconnect detaches it and Reconnect puts it
// back at the head of the list:
//
//	e := event.NewEvent(event.WithName("saved"))
//	sub, _ := e.SubscribeFunc(func(args ...any) error {
//	    fmt.Println("saved", args...)
//	    return nil
//	})
//	_ = e.Fire("main.go")
//	_ = sub.Disconnect()
//
// A handler may disconnect itself or others, subscribe new handlers, or fire
// the same event recursively. A handler that disconnects itself while it is
// executing stays linked until it returns but is not invoked again.
//
// # Waiters
//
// A running task.Task calls Wait to suspend until the next Fire. Each Wait
// registers a fresh Waiter; a waiter is resumed at most once:
//
//	worker := task.New(func(t *task.Task, _ ...any) error {
//	    args, err := e.Wait(t)
//	    ...
//	})
//	_, _ = worker.Resume() // runs until Wait
//	_ = e.Fire(1, 2)       // resumes worker with [1 2]
//
// Host runtimes park their own coroutines with Register.
//
// # Failures
//
// Handler errors, handler panics and failed resumes are contained. Each is
// delivered to the event's Reporter as a Record and dispatch continues. The
// default reporter prints a sectioned text block to standard error.
//
// # Concurrency
//
// Events are not safe for concurrent use. Tasks resumed by Fire run while
// Fire waits for them, so they share the firing goroutine's logical thread.
package event
