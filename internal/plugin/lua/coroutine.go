package lua

import (
	"errors"
	"reflect"

	lua "github.com/yuin/gopher-lua"
)

// errCloseRunning is returned when closing the running coroutine.
var errCloseRunning = errors.New("cannot close a running coroutine")

// luaCoroutine adapts a suspended Lua thread to event.Coroutine.
type luaCoroutine struct {
	m  *Module
	th *lua.LState
}

// Accepts reports whether a resume carrying n values fits.
func (c *luaCoroutine) Accepts(n int) bool {
	return n <= c.m.maxResumeArgs
}

// MaxArgs returns the resume capacity.
func (c *luaCoroutine) MaxArgs() int {
	return c.m.maxResumeArgs
}

// Resume continues the thread through coroutine.resume on the running
// thread, so threads created by coroutine.wrap behave as well.
func (c *luaCoroutine) Resume(args ...any) ([]any, error) {
	L := c.m.current()
	prev := L.G.CurrentThread
	wrapped := isWrapped(c.th)
	top := L.GetTop()

	L.Push(c.m.resume)
	L.Push(c.th)
	for _, v := range c.m.values(args) {
		L.Push(v)
	}
	if err := L.PCall(1+len(args), lua.MultRet, nil); err != nil {
		// A wrapped thread raises into its resumer without switching back.
		L.G.CurrentThread = prev
		c.th.Dead = true
		serr := newScriptError(err)
		serr.Trace = traceback(c.th, 0)
		return nil, serr
	}

	results := make([]lua.LValue, 0, L.GetTop()-top)
	for i := top + 1; i <= L.GetTop(); i++ {
		results = append(results, L.Get(i))
	}
	L.SetTop(top)

	if !wrapped && len(results) > 0 {
		if results[0] == lua.LFalse {
			msg := lua.LValue(lua.LNil)
			if len(results) > 1 {
				msg = results[1]
			}
			return nil, &ScriptError{Message: errorMessage(msg), Trace: traceback(c.th, 0)}
		}
		results = results[1:]
	}

	out := make([]any, len(results))
	for i, v := range results {
		out[i] = v
	}
	return out, nil
}

// Close marks the thread dead so it can never be resumed. gopher-lua has no
// to-be-closed variables, so there is nothing else to unwind.
func (c *luaCoroutine) Close() error {
	if c.th.Dead {
		return nil
	}
	if c.m.current() == c.th {
		return errCloseRunning
	}
	c.th.Dead = true
	return nil
}

// isWrapped reports whether th was created by coroutine.wrap. Such threads
// return results without a status flag and raise errors into their resumer.
func isWrapped(th *lua.LState) bool {
	f := reflect.ValueOf(th).Elem().FieldByName("wrapped")
	return f.IsValid() && f.Kind() == reflect.Bool && f.Bool()
}
