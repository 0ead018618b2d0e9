package task

import (
	"errors"
	"fmt"
)

// Sentinel errors for task operations.
var (
	// ErrRunning is returned when resuming or closing a task that is executing.
	ErrRunning = errors.New("task is running")

	// ErrDead is returned when resuming a task that has finished or was closed.
	ErrDead = errors.New("task is dead")

	// ErrTooManyArgs is returned when a Resume carries more values than the task accepts.
	ErrTooManyArgs = errors.New("too many arguments to resume task")

	// ErrNilFunc is returned when resuming a task created without a function.
	ErrNilFunc = errors.New("task function cannot be nil")

	// ErrPanic matches failures caused by a panic inside the task.
	ErrPanic = errors.New("task panicked")
)

// Error is a task failure as seen by its resumer.
type Error struct {
	// Task is the task's name, possibly empty.
	Task string

	// Err is what the task returned or a *PanicError.
	Err error

	// Stack is the task goroutine's stack when it panicked or returned
	// the error.
	Stack string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Task == "" {
		return "task failed: " + e.Err.Error()
	}
	return "task " + e.Task + " failed: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Traceback returns the stack captured when the task failed.
func (e *Error) Traceback() string {
	return e.Stack
}

// PanicError wraps a value recovered from a panic inside a task.
type PanicError struct {
	Value any
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Is allows errors.Is to match PanicError with ErrPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrPanic
}

// Traceback returns the stack captured at the panic.
func (e *PanicError) Traceback() string {
	return e.Stack
}
