package lua

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultQueueSize is the number of operations an Executor buffers.
const DefaultQueueSize = 100

// call is a Lua operation queued on an Executor.
type call struct {
	fn     func(L *lua.LState) error
	result chan error
}

// Executor serializes all Lua operations through a single goroutine.
//
// gopher-lua's LState is NOT goroutine-safe, and events fired into Lua run
// handlers and resume coroutines on it. Scripts, file watchers and signal
// handlers therefore hand their work to the Executor, which runs it on the
// goroutine that owns the state:
//
//	exec := NewExecutor(state.LuaState(), 0)
//	go exec.Run(ctx)
//	defer exec.Close()
//
//	// From any goroutine:
//	err := exec.Execute(ctx, func(L *lua.LState) error {
//	    return changed.Fire(path)
//	})
type Executor struct {
	L      *lua.LState
	queue  chan *call
	closed atomic.Bool
	done   chan struct{}

	closeOnce sync.Once
}

// NewExecutor creates a new Executor for the given Lua state.
// The queue size determines how many operations can be buffered.
func NewExecutor(L *lua.LState, queueSize int) *Executor {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Executor{
		L:     L,
		queue: make(chan *call, queueSize),
		done:  make(chan struct{}),
	}
}

// Run processes Lua operations from the queue.
// This method blocks until the context is cancelled or Close is called.
func (e *Executor) Run(ctx context.Context) {
	for {
		// Shutdown wins over queued work.
		select {
		case <-e.done:
			e.drain(ErrExecutorClosed)
			return
		default:
		}

		select {
		case <-ctx.Done():
			e.drain(ctx.Err())
			return
		case <-e.done:
			e.drain(ErrExecutorClosed)
			return
		case c := <-e.queue:
			c.result <- e.execute(c)
			close(c.result)
		}
	}
}

// execute runs a single Lua operation with panic recovery.
func (e *Executor) execute(c *call) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(error); ok {
				err = fmt.Errorf("lua panic: %w", rerr)
			} else {
				err = fmt.Errorf("lua panic: %v", r)
			}
		}
	}()
	return c.fn(e.L)
}

// drain fails every queued call with err.
func (e *Executor) drain(err error) {
	for {
		select {
		case c := <-e.queue:
			c.result <- err
			close(c.result)
		default:
			return
		}
	}
}

// Execute runs fn on the executor's goroutine and waits for it to finish or
// for ctx to be cancelled.
func (e *Executor) Execute(ctx context.Context, fn func(L *lua.LState) error) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}

	c := &call{fn: fn, result: make(chan error, 1)}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrExecutorClosed
	case e.queue <- c:
	}

	select {
	case <-ctx.Done():
		// The call stays queued and will still run.
		return ctx.Err()
	case err, ok := <-c.result:
		if !ok {
			return ErrExecutorClosed
		}
		return err
	}
}

// Post queues fn without waiting for it. Errors are passed to onErr when it
// is not nil. Post returns ErrQueueFull rather than block.
func (e *Executor) Post(fn func(L *lua.LState) error, onErr func(error)) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}

	c := &call{fn: fn, result: make(chan error, 1)}

	select {
	case <-e.done:
		return ErrExecutorClosed
	case e.queue <- c:
		go func() {
			if err := <-c.result; err != nil && onErr != nil {
				onErr(err)
			}
		}()
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the executor and prevents new operations.
// Queued operations fail with ErrExecutorClosed.
func (e *Executor) Close() {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.done)
	})
}

// IsClosed returns true if the executor has been closed.
func (e *Executor) IsClosed() bool {
	return e.closed.Load()
}
