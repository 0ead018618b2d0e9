// Package task provides cooperative tasks: functions that run on their own
// goroutine but hand control back and forth with their resumer, so that at
// most one of them executes at any moment.
//
// A Task behaves like a coroutine. Resume starts or continues it and blocks
// until the task either suspends itself or finishes:
//
//	t := task.New(func(t *task.Task, args ...any) error {
//	    next := t.Suspend("ready")
//	    fmt.Println("resumed with", next)
//	    return nil
//	})
//
//	vals, _ := t.Resume()  // vals == ["ready"]
//	_, _ = t.Resume(42)    // prints "resumed with [42]"
//
// Cleanups registered with Defer behave like scoped resources. They run when
// the task finishes normally. When the task fails they stay pending until
// Close is called, which lets the owner decide whether a failed task gets
// torn down.
//
// A suspended task holds its goroutine until it is resumed to completion or
// closed; it is never collected while parked.
//
// Tasks are not safe for concurrent use. The handoff protocol only guarantees
// that the resumer and the task never run at the same time.
package task

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// DefaultMaxArgs is the default number of values a single Resume may carry.
const DefaultMaxArgs = 1024

// Status describes where a task is in its lifecycle.
type Status int

const (
	// StatusSuspended means the task has not started yet or is parked in Suspend.
	StatusSuspended Status = iota

	// StatusRunning means the task is executing (or is blocked resuming another task).
	StatusRunning

	// StatusDead means the task finished, failed, or was closed.
	StatusDead
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusSuspended:
		return "suspended"
	case StatusRunning:
		return "running"
	case StatusDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Func is the body of a task. args are the values passed to the first Resume.
type Func func(t *Task, args ...any) error

// Option configures a Task.
type Option func(*Task)

// WithMaxArgs sets how many values a single Resume may carry.
func WithMaxArgs(n int) Option {
	return func(t *Task) {
		if n >= 0 {
			t.maxArgs = n
		}
	}
}

// WithName labels the task in error messages.
func WithName(name string) Option {
	return func(t *Task) {
		t.name = name
	}
}

// closeSignal unwinds a suspended task's goroutine during Close.
type closeSignal struct{}

// resumeMsg is sent from the resumer to the task.
type resumeMsg struct {
	args  []any
	close bool
}

// outcome is sent from the task back to its resumer.
type outcome struct {
	values []any
	done   bool
	closed bool
	err    error
	stack  string
}

// Task is a cooperative unit of work. Create one with New.
type Task struct {
	fn      Func
	name    string
	maxArgs int

	status  Status
	started bool
	closing bool

	resumeCh chan resumeMsg
	yieldCh  chan outcome

	// cleanups registered through Defer, run in reverse order.
	cleanups []func() error
}

// New creates a suspended task that runs fn on its first Resume.
func New(fn Func, opts ...Option) *Task {
	t := &Task{
		fn:       fn,
		maxArgs:  DefaultMaxArgs,
		status:   StatusSuspended,
		resumeCh: make(chan resumeMsg),
		yieldCh:  make(chan outcome),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the task's label.
func (t *Task) Name() string {
	return t.name
}

// Status returns the task's current status.
func (t *Task) Status() Status {
	return t.status
}

// MaxArgs returns how many values a single Resume may carry.
func (t *Task) MaxArgs() int {
	return t.maxArgs
}

// Accepts reports whether a Resume carrying n values fits the task's capacity.
func (t *Task) Accepts(n int) bool {
	return n <= t.maxArgs
}

// Resume starts the task or continues it from its last Suspend, passing args.
// It blocks until the task suspends again or finishes. The returned values are
// the ones handed to Suspend, or nil when the task finished.
//
// A task that returns an error or panics fails; Resume then returns a *Error.
func (t *Task) Resume(args ...any) ([]any, error) {
	switch t.status {
	case StatusRunning:
		return nil, ErrRunning
	case StatusDead:
		return nil, ErrDead
	}
	if t.fn == nil {
		return nil, ErrNilFunc
	}
	if !t.Accepts(len(args)) {
		return nil, fmt.Errorf("%w: %d values, limit %d", ErrTooManyArgs, len(args), t.maxArgs)
	}

	t.status = StatusRunning
	if !t.started {
		t.started = true
		go t.run(args)
	} else {
		t.resumeCh <- resumeMsg{args: args}
	}

	out := <-t.yieldCh
	if !out.done {
		t.status = StatusSuspended
		return out.values, nil
	}

	t.status = StatusDead
	if out.err != nil {
		return nil, t.wrap(out.err, out.stack)
	}
	return nil, nil
}

// Suspend parks the task and hands values to its resumer. It returns the
// arguments of the Resume call that continues the task.
//
// Suspend must only be called from inside the task's own function.
func (t *Task) Suspend(values ...any) []any {
	if t.closing {
		panic(closeSignal{})
	}
	t.yieldCh <- outcome{values: values}
	msg := <-t.resumeCh
	if msg.close {
		t.closing = true
		panic(closeSignal{})
	}
	return msg.args
}

// Defer registers a cleanup tied to the task's scope.
func (t *Task) Defer(fn func() error) {
	if fn != nil {
		t.cleanups = append(t.cleanups, fn)
	}
}

// Pending returns the number of cleanups that have not run yet.
func (t *Task) Pending() int {
	return len(t.cleanups)
}

// Close forcibly terminates the task. A suspended task is unwound, which
// runs the deferred calls inside its function; afterwards every pending
// cleanup runs. Closing a task that never started just marks it dead.
// Errors raised while unwinding or cleaning up are joined and returned.
func (t *Task) Close() error {
	if t.status == StatusRunning {
		return ErrRunning
	}

	var errs []error
	if t.status == StatusSuspended && t.started {
		t.status = StatusRunning
		t.resumeCh <- resumeMsg{close: true}
		out := <-t.yieldCh
		if out.err != nil {
			errs = append(errs, t.wrap(out.err, out.stack))
		}
	}
	t.status = StatusDead

	if err := t.runCleanups(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// run is the task goroutine.
func (t *Task) run(args []any) {
	var out outcome
	defer func() {
		t.yieldCh <- out
	}()
	defer func() {
		r := recover()
		switch {
		case r == nil:
		case isCloseSignal(r):
			out = outcome{done: true, closed: true}
		default:
			out = outcome{
				done: true,
				err:  &PanicError{Value: r, Stack: string(debug.Stack())},
			}
		}
	}()

	err := t.fn(t, args...)
	if t.closing {
		// The body swallowed the unwind; treat it as closed.
		out = outcome{done: true, closed: true, err: err}
		return
	}
	if err != nil {
		out = outcome{done: true, err: err, stack: string(debug.Stack())}
		return
	}
	out = outcome{done: true, err: t.runCleanups()}
}

// runCleanups runs and clears pending cleanups, last registered first.
func (t *Task) runCleanups() error {
	var errs []error
	for len(t.cleanups) > 0 {
		n := len(t.cleanups) - 1
		fn := t.cleanups[n]
		t.cleanups = t.cleanups[:n]
		if err := runCleanup(fn); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func runCleanup(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	return fn()
}

// wrap attaches the task name and a traceback to a failure. A panic's own
// stack wins over stack.
func (t *Task) wrap(err error, stack string) error {
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	e := &Error{Task: t.name, Err: err, Stack: stack}
	var pe *PanicError
	if errors.As(err, &pe) {
		e.Stack = pe.Stack
	}
	return e
}

func isCloseSignal(r any) bool {
	_, ok := r.(closeSignal)
	return ok
}
