package event

import (
	"github.com/dshills/eventsys/internal/task"
)

// Wait registers t as a waiter and suspends it until a later Fire reaches
// it. It returns the arguments of that Fire.
//
// Wait must be called from inside t's own function while t is running, and
// not from a handler that t is running for a Fire: that Fire could never
// finish. With WithCloseOnError, t is closed if the resume delivering the
// Fire fails, which runs its pending cleanups.
//
// A waiter that no Fire ever reaches keeps t, and its goroutine, alive.
// Close t to release it.
func (e *Event) Wait(t *task.Task, opts ...WaitOption) ([]any, error) {
	if !e.valid() || t == nil || t.Status() != task.StatusRunning {
		return nil, ErrInvalidState
	}
	if inHandler() {
		return nil, ErrInvalidState
	}

	var config waitConfig
	for _, opt := range opts {
		opt(&config)
	}

	if _, err := e.Register(t, config.closeOnError); err != nil {
		return nil, err
	}
	return t.Suspend(), nil
}
