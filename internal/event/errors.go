package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for events.
var (
	// ErrInvalidState is returned when an operation receives a value that is
	// not a live Subscriber, Event, or running task.
	ErrInvalidState = errors.New("invalid state")

	// ErrCapacityExceeded is returned when more arguments are forwarded than
	// the receiver can stage.
	ErrCapacityExceeded = errors.New("argument capacity exceeded")

	// ErrNilHandler is returned when a nil handler is subscribed.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrNilCoroutine is returned when a nil coroutine is registered as a waiter.
	ErrNilCoroutine = errors.New("coroutine cannot be nil")

	// ErrHandlerPanic is returned when a handler panics.
	ErrHandlerPanic = errors.New("handler panicked")
)

// SubscriberError is a failure raised by a subscriber's handler during Fire.
type SubscriberError struct {
	// EventID identifies the event being fired.
	EventID string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *SubscriberError) Error() string {
	return "subscriber error on event " + e.EventID + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *SubscriberError) Unwrap() error {
	return e.Err
}

// ResumeError is a failure raised while resuming a waiter.
type ResumeError struct {
	EventID string
	Err     error
}

// Error implements the error interface.
func (e *ResumeError) Error() string {
	return "waiter resume error on event " + e.EventID + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ResumeError) Unwrap() error {
	return e.Err
}

// TerminationError is a failure raised while forcibly closing a waiter's
// coroutine after its resume failed.
type TerminationError struct {
	EventID string
	Err     error
}

// Error implements the error interface.
func (e *TerminationError) Error() string {
	return "waiter termination error on event " + e.EventID + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *TerminationError) Unwrap() error {
	return e.Err
}

// CapacityError reports that Args values do not fit a receiver limited to Limit.
type CapacityError struct {
	EventID string
	Args    int
	Limit   int
}

// Error implements the error interface.
func (e *CapacityError) Error() string {
	if e.Limit < 0 {
		return fmt.Sprintf("too many arguments on event %s: %d", e.EventID, e.Args)
	}
	return fmt.Sprintf("too many arguments on event %s: %d exceeds limit %d", e.EventID, e.Args, e.Limit)
}

// Is allows errors.Is to match CapacityError with ErrCapacityExceeded.
func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.Value)
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}

// Traceback returns the stack captured at the panic.
func (e *PanicError) Traceback() string {
	return e.Stack
}

// tracebacker is implemented by errors that carry their own traceback.
type tracebacker interface {
	Traceback() string
}

// tracebackOf returns the first traceback found in err's chain.
func tracebackOf(err error) string {
	for err != nil {
		if tb, ok := err.(tracebacker); ok && tb.Traceback() != "" {
			return tb.Traceback()
		}
		err = errors.Unwrap(err)
	}
	return ""
}
